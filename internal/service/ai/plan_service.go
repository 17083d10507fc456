package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/date-night/backend/internal/config"
	"github.com/zhouzirui/date-night/backend/internal/logger"
	"github.com/zhouzirui/date-night/backend/internal/model/preference"
)

// ErrEmptyPlan is returned when the model answers with no text.
var ErrEmptyPlan = errors.New("generation returned an empty plan")

// PlanService runs the planner prompt through a chat model.
type PlanService struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	log   *logger.Logger
}

// NewChatModel builds the generation collaborator selected by cfg.Provider.
func NewChatModel(ctx context.Context, cfg config.GenerationConfig) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case config.ProviderWorkersAI:
		chatModel, err := NewWorkersAIChatModel(cfg.WorkersAI, nil)
		if err != nil {
			return nil, err
		}
		return chatModel, nil
	case config.ProviderArk:
		return cfg.Ark.NewChatModel(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown AI provider %q", config.ErrConfigurationMissing, cfg.Provider)
	}
}

// NewPlanService compiles the planner chain around chatModel.
func NewPlanService(ctx context.Context, chatModel model.BaseChatModel, log *logger.Logger) (*PlanService, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model", config.ErrConfigurationMissing)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile plan chain: %w", err)
	}

	return &PlanService{
		chain: runnable,
		log:   log.With("service", "PlanService"),
	}, nil
}

// GeneratePlan asks the model for an itinerary reconciling both partners.
func (s *PlanService) GeneratePlan(ctx context.Context, first, second preference.Preferences) (string, error) {
	req, err := BuildPlanRequest(first, second)
	if err != nil {
		return "", err
	}

	response, err := s.chain.Invoke(ctx, map[string]any{
		"system": req.System,
		"query":  req.User,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run plan chain: %w", err)
	}

	plan := ""
	if response != nil {
		plan = strings.TrimSpace(response.Content)
	}
	if plan == "" {
		return "", ErrEmptyPlan
	}

	s.log.Info("plan generated", "length", len(plan), "exclude_intimacy", req.ExcludeIntimacy)
	return plan, nil
}
