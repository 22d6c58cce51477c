package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/llm"
	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/store"
	"github.com/eunoia-wellness/companion/pkg/logger"
	"github.com/eunoia-wellness/companion/pkg/metrics"
)

// MessageService generates and stores replies.
type MessageService struct {
	conversations *ConversationService
	store         store.Store
	llmClient     llm.Client
	model         string
	logger        *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(
	conversations *ConversationService,
	st store.Store,
	llmClient llm.Client,
	modelName string,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		conversations: conversations,
		store:         st,
		llmClient:     llmClient,
		model:         modelName,
		logger:        logger.OrGlobal(log).Named("messages"),
	}
}

// Prepare loads the conversation a request continues. It returns nil for
// a request that starts a new conversation.
func (s *MessageService) Prepare(ctx context.Context, req *model.ChatRequest) (*model.Conversation, error) {
	if req.ConversationID == "" {
		return nil, nil
	}
	return s.conversations.Get(ctx, req.UserID, req.ConversationID)
}

// Reply streams the reply to req through onToken and stores the exchange.
// A new conversation is created only once the reply has completed. It
// returns the conversation id.
func (s *MessageService) Reply(ctx context.Context, conv *model.Conversation, req *model.ChatRequest, onToken llm.StreamCallback) (string, error) {
	var history []model.Exchange
	if conv != nil {
		history = conv.Exchanges
	}

	start := time.Now()
	resp, err := s.llmClient.CompleteStream(ctx, llm.BuildRequest(s.model, history, req.Message), onToken)
	if err != nil {
		metrics.RepliesTotal.WithLabelValues(s.llmClient.Name(), "error").Inc()
		return "", fmt.Errorf("LLM stream failed: %w", err)
	}
	metrics.RepliesTotal.WithLabelValues(s.llmClient.Name(), "success").Inc()

	if conv == nil {
		conv, err = s.store.Create(ctx, req.UserID, Title(req.Message))
		if err != nil {
			return "", fmt.Errorf("failed to create conversation: %w", err)
		}
		s.logger.Info("conversation created",
			zap.String("conversation_id", conv.ID),
			zap.String("user_id", req.UserID),
		)
	}

	err = s.store.Append(ctx, conv.ID, model.Exchange{
		UserMessage: req.Message,
		BotResponse: resp.Content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store exchange: %w", err)
	}

	s.logger.Debug("reply stored",
		zap.String("conversation_id", conv.ID),
		zap.String("model", resp.Model),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Duration("latency", time.Since(start)),
	)
	return conv.ID, nil
}
