package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/date-night/backend/internal/logger"
	"github.com/zhouzirui/date-night/backend/internal/model/preference"
)

type recordingModel struct {
	mu     sync.Mutex
	inputs [][]*schema.Message
	reply  string
	err    error
}

func (m *recordingModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *recordingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *recordingModel) sentText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	for _, input := range m.inputs {
		for _, msg := range input {
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func parse(t *testing.T, body string) preference.Preferences {
	t.Helper()
	p, err := preference.Parse([]byte(body))
	require.NoError(t, err)
	return p
}

func newPlanService(t *testing.T, chatModel model.BaseChatModel) *PlanService {
	t.Helper()
	svc, err := NewPlanService(context.Background(), chatModel, logger.Nop())
	require.NoError(t, err)
	return svc
}

func TestGeneratePlanExcludesIntimacyWhenPartnerRefuses(t *testing.T) {
	fake := &recordingModel{reply: "  Title: Dinner & Dancing\n1. Eat out  "}
	svc := newPlanService(t, fake)

	first := parse(t, `{"eat":["Eat Out"],"location":["Dancing"],"watch":["Movie Night"],"genre":["Action"],"physical_connection_intimacy":["No Thanks"]}`)
	second := parse(t, `{"physical_connection_intimacy":["Snuggle"]}`)

	plan, err := svc.GeneratePlan(context.Background(), first, second)
	require.NoError(t, err)
	assert.Equal(t, "Title: Dinner & Dancing\n1. Eat out", plan)

	require.Len(t, fake.inputs, 1)
	messages := fake.inputs[0]
	require.Len(t, messages, 2)
	assert.Equal(t, schema.System, messages[0].Role)
	assert.Equal(t, schema.User, messages[1].Role)
	assert.Contains(t, messages[0].Content, IntimacyExclusionInstruction)
	assert.Contains(t, messages[1].Content, `"physical_connection_intimacy":["Snuggle"]`)
	assert.Contains(t, messages[1].Content, `"genre":["Action"]`)
}

func TestGeneratePlanWithoutRefusalOmitsExclusion(t *testing.T) {
	fake := &recordingModel{reply: "plan"}
	svc := newPlanService(t, fake)

	_, err := svc.GeneratePlan(context.Background(),
		parse(t, `{"connect":["Hold Hands"]}`),
		parse(t, `{"connect":["Snuggle"]}`))
	require.NoError(t, err)
	assert.NotContains(t, fake.sentText(), IntimacyExclusionInstruction)
}

func TestGeneratePlanSendsNormalizedPreferences(t *testing.T) {
	fake := &recordingModel{reply: "plan"}
	svc := newPlanService(t, fake)

	_, err := svc.GeneratePlan(context.Background(),
		parse(t, `{"eat":["Take Out"],"location":["Dancing"]}`),
		parse(t, `{"watch":["No Screens"],"genre":["Horror"]}`))
	require.NoError(t, err)

	sent := fake.sentText()
	assert.Contains(t, sent, `"location":["Home"]`)
	assert.Contains(t, sent, `"genre":[]`)
}

func TestGeneratePlanEmptyReply(t *testing.T) {
	svc := newPlanService(t, &recordingModel{reply: "   "})
	_, err := svc.GeneratePlan(context.Background(), preference.New(), preference.New())
	assert.ErrorIs(t, err, ErrEmptyPlan)
}

func TestGeneratePlanModelError(t *testing.T) {
	boom := errors.New("upstream exploded")
	svc := newPlanService(t, &recordingModel{err: boom})
	_, err := svc.GeneratePlan(context.Background(), preference.New(), preference.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestBuildPlanRequestFlagsEitherPartner(t *testing.T) {
	req, err := BuildPlanRequest(parse(t, `{"connect":["Snuggle"]}`), parse(t, `{"connect":["Pass"]}`))
	require.NoError(t, err)
	assert.True(t, req.ExcludeIntimacy)
	assert.True(t, strings.HasSuffix(req.System, IntimacyExclusionInstruction))
	assert.Contains(t, req.User, "Partner 1: ")
	assert.Contains(t, req.User, "Partner 2: ")
}
