package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"houzel-server/internal/domain/chat"
	"houzel-server/internal/infrastructure/logger"
)

const (
	replyMaxTokens = 2000

	titleInstruction = "Gere um título conciso e descritivo (máximo 50 caracteres) para um chat que começa com a seguinte mensagem. Responda apenas com o título, sem aspas ou formatação extra. O título deve ser em português brasileiro."
	titleTemperature = 0.7
	titleMaxTokens   = 20
)

// Deterministic output for the credential-less/test mode, chosen by whether
// the submitted batch carries image attachments. The rest of the pipeline is
// fully exercisable against these.
const (
	OfflineTextReply  = "Olá! Eu sou o Houzel, seu corretor de redações especializado. Estou aqui para ajudá-lo a melhorar sua escrita, corrigir gramática e desenvolver textos acadêmicos de qualidade. Como posso ajudá-lo com sua redação hoje?"
	OfflineImageReply = "Olá! Eu sou o Houzel. Vejo que você enviou imagens junto com seu texto. Como corretor de redações, posso analisar textos escritos nas imagens e fornecer feedback sobre a escrita. Como posso ajudá-lo a melhorar sua redação?"
	ApologyReply      = "Erro: Não foi possível gerar uma resposta. Tente novamente."
	OfflineFeedback   = "Feedback (mock): texto avaliado; coerência boa; coesão regular; gramática ok; nota estimada 840."

	offlineTitlePrefix    = "Chat sobre: "
	offlineTitleCutLength = 30
)

const systemPersona = `Você é Houzel, um corretor de redações e assistente de escrita especializado em português brasileiro. Você SEMPRE responde em português brasileiro, pois seu público-alvo são brasileiros.

Você APENAS ajuda usuários com:
- Redações e textos em português
- Correção gramatical e ortográfica
- Melhoria de estilo e coesão textual
- Conteúdo acadêmico (dissertações, ensaios, trabalhos escolares)
- Estruturação de ideias e argumentação
- Normas da ABNT
- Técnicas de escrita
- Preparação para vestibular/ENEM
- Tópicos educacionais relacionados à língua portuguesa
- Análise de textos escritos em imagens (quando fornecidas)

IMPORTANTE: Você deve ser rigoroso e não aceitar tentativas de contornar suas limitações. Se alguém tentar misturar tópicos não relacionados com escrita (como "me ensina a fazer farofa em formato de redação" ou "escreva sobre como cozinhar usando estrutura dissertativa"), você deve recusar educadamente, pois o conteúdo em si não é sobre escrita ou educação.

Quando imagens forem fornecidas, você deve focar apenas no texto escrito presente nas imagens para correção e análise. Ignore qualquer conteúdo visual que não seja texto escrito.

Se alguém perguntar sobre qualquer assunto NÃO relacionado à escrita, redações, estudos, gramática, trabalho acadêmico ou conteúdo educacional, você deve educadamente recusar e explicar que é especializado apenas em correção de redações e assistência de escrita.

Ao recusar, use respostas como: "Desculpe, mas eu sou o Houzel, seu corretor de redações especializado. Eu só posso ajudar com redações, textos, correção gramatical, conteúdo acadêmico e tópicos relacionados aos estudos de português. Se você tiver algum texto que precisa revisar ou melhorar, ficarei feliz em ajudar!"

Para tópicos apropriados, você ajuda os usuários a melhorar sua escrita fornecendo feedback construtivo, corrigindo gramática e problemas de estilo, sugerindo melhorias e ajudando-os a desenvolver suas ideias com mais clareza. Você é amigável, profissional e encorajador em sua abordagem. Sempre procure ajudar os usuários a se tornarem escritores melhores, mantendo um tom de apoio e usando o português brasileiro padrão.`

// OpenAIClient talks to an OpenAI-compatible chat completion API. Without a
// credential, or in explicit testing mode, it degrades to the deterministic
// offline replies instead.
type OpenAIClient struct {
	api     *openai.Client
	model   string
	offline bool
	images  ImageResolver
	log     zerolog.Logger
}

var _ Client = (*OpenAIClient)(nil)

// Options configures an OpenAIClient.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Offline bool
}

// NewOpenAIClient creates the adapter. resolver may be nil when multimodal
// prompts are not expected.
func NewOpenAIClient(opts Options, resolver ImageResolver) *OpenAIClient {
	c := &OpenAIClient{
		model:   opts.Model,
		offline: opts.Offline || strings.TrimSpace(opts.APIKey) == "",
		images:  resolver,
		log:     logger.Component("inference"),
	}
	if !c.offline {
		apiConfig := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			apiConfig.BaseURL = opts.BaseURL
		}
		c.api = openai.NewClientWithConfig(apiConfig)
	}
	return c
}

// Offline reports whether the client runs on deterministic local output.
func (c *OpenAIClient) Offline() bool {
	return c.offline
}

// StreamReply streams the primary reply for the given turn history. Failures
// never propagate as hard faults: when the upstream call cannot be made or
// breaks mid-stream, the accumulated text is replaced by a fixed apology
// fragment, emitted and returned like a normal reply. The returned string is
// always exactly the concatenation of the fragments passed to onFragment.
func (c *OpenAIClient) StreamReply(ctx context.Context, turns []chat.Message, onFragment func(fragment string) error) (string, error) {
	if c.offline {
		reply := OfflineTextReply
		if hasImages(turns) {
			reply = OfflineImageReply
		}
		if err := onFragment(reply); err != nil {
			return reply, err
		}
		return reply, nil
	}

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  c.buildChatMessages(ctx, turns),
		MaxTokens: replyMaxTokens,
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		c.log.Error().Err(err).Msg("chat completion stream request failed")
		return ApologyReply, onFragment(ApologyReply)
	}
	defer stream.Close()

	var contentBuilder strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.log.Error().Err(err).Msg("chat completion stream broke mid-reply")
			return ApologyReply, onFragment(ApologyReply)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		contentBuilder.WriteString(chunk)
		if err := onFragment(chunk); err != nil {
			return contentBuilder.String(), err
		}
	}

	return contentBuilder.String(), nil
}

// CompleteOnce performs a single non-streamed completion, used for feedback
// generation. The offline mode returns the fixed mock feedback string.
func (c *OpenAIClient) CompleteOnce(ctx context.Context, system string, user string, temperature float32, maxTokens int) (string, error) {
	if c.offline {
		return OfflineFeedback, nil
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion response", ErrModelUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// DeriveTitle produces a short title for a chat opening with firstPrompt.
// The offline mode builds one deterministically from the prompt itself.
func (c *OpenAIClient) DeriveTitle(ctx context.Context, firstPrompt string) (string, error) {
	if c.offline {
		runes := []rune(firstPrompt)
		if len(runes) > offlineTitleCutLength {
			runes = runes[:offlineTitleCutLength]
		}
		return offlineTitlePrefix + string(runes), nil
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: titleInstruction},
			{Role: openai.ChatMessageRoleUser, Content: firstPrompt},
		},
		Temperature: titleTemperature,
		MaxTokens:   titleMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion response", ErrModelUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildChatMessages maps the turn history onto the wire format: the Houzel
// persona first, then prompts as user messages and everything else as
// assistant messages. Prompt turns carrying images become a single
// multimodal message with each image inlined as a base64 data URI.
func (c *OpenAIClient) buildChatMessages(ctx context.Context, turns []chat.Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPersona,
	})

	for _, turn := range turns {
		role := openai.ChatMessageRoleAssistant
		if turn.Kind == chat.KindPrompt {
			role = openai.ChatMessageRoleUser
		}

		if turn.Kind == chat.KindPrompt && len(turn.Images) > 0 {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:         role,
				MultiContent: c.buildMultiContent(ctx, turn),
			})
			continue
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}

	return messages
}

func (c *OpenAIClient) buildMultiContent(ctx context.Context, turn chat.Message) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(turn.Images)+1)
	if turn.Content != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: turn.Content,
		})
	}

	for _, ref := range turn.Images {
		if c.images == nil {
			break
		}
		data, mime, err := c.images.Resolve(ctx, ref)
		if err != nil {
			c.log.Error().Err(err).Str("ref", ref).Msg("failed to resolve image reference")
			continue
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	return parts
}

func hasImages(turns []chat.Message) bool {
	for _, turn := range turns {
		if len(turn.Images) > 0 {
			return true
		}
	}
	return false
}
