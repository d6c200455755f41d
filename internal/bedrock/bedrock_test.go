package bedrock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
)

type fakeAgent struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	inputs  []*bedrockagentruntime.RetrieveAndGenerateInput
}

func (f *fakeAgent) RetrieveAndGenerate(_ context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, _ ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, params)
	kbID := aws.ToString(params.RetrieveAndGenerateConfiguration.KnowledgeBaseConfiguration.KnowledgeBaseId)
	if err := f.errs[kbID]; err != nil {
		return nil, err
	}
	return &bedrockagentruntime.RetrieveAndGenerateOutput{
		Output: &agenttypes.RetrieveAndGenerateOutput{Text: aws.String(f.answers[kbID])},
	}, nil
}

type fakeRuntime struct {
	reply  string
	err    error
	inputs []*bedrockruntime.ConverseInput
}

func (f *fakeRuntime) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.ConverseOutput{
		Output: &runtimetypes.ConverseOutputMemberMessage{Value: runtimetypes.Message{
			Role: runtimetypes.ConversationRoleAssistant,
			Content: []runtimetypes.ContentBlock{
				&runtimetypes.ContentBlockMemberText{Value: f.reply[:len(f.reply)/2]},
				&runtimetypes.ContentBlockMemberText{Value: f.reply[len(f.reply)/2:] + "\n"},
			},
		}},
	}, nil
}

func testConfig() Config {
	return Config{
		StructuredKBID:    "KB-S",
		UnstructuredKBID:  "KB-U",
		KBModelARN:        "arn:kb-model",
		RecommendModelARN: "arn:recommend-model",
		SummaryModelID:    "summary-model",
		MaxTokens:         512,
		Temperature:       0.7,
	}
}

func newTestService(t *testing.T, agent *fakeAgent, runtime *fakeRuntime) *Service {
	t.Helper()
	service, err := NewWithAPI(agent, runtime, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	return service
}

func TestAnswerUsesRequestedKnowledgeBase(t *testing.T) {
	agent := &fakeAgent{answers: map[string]string{"KB-S": "structured answer", "KB-U": "unstructured answer"}}
	service := newTestService(t, agent, &fakeRuntime{})

	got, err := service.Answer(context.Background(), Unstructured, "what is new?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if got != "unstructured answer" {
		t.Fatalf("Answer() = %q", got)
	}
	input := agent.inputs[0]
	if aws.ToString(input.Input.Text) != "what is new?" {
		t.Fatalf("input text = %q", aws.ToString(input.Input.Text))
	}
	if input.RetrieveAndGenerateConfiguration.Type != agenttypes.RetrieveAndGenerateTypeKnowledgeBase {
		t.Fatalf("type = %q", input.RetrieveAndGenerateConfiguration.Type)
	}
	if aws.ToString(input.RetrieveAndGenerateConfiguration.KnowledgeBaseConfiguration.ModelArn) != "arn:kb-model" {
		t.Fatal("unexpected model arn")
	}
}

func TestAnswerRejectsUnknownKnowledgeBase(t *testing.T) {
	service := newTestService(t, &fakeAgent{}, &fakeRuntime{})
	if _, err := service.Answer(context.Background(), KnowledgeBase("other"), "q"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnswerSurfacesServiceMessage(t *testing.T) {
	agent := &fakeAgent{errs: map[string]error{"KB-S": &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"}}}
	service := newTestService(t, agent, &fakeRuntime{})

	_, err := service.Answer(context.Background(), Structured, "q")
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("error = %v, want *CallError", err)
	}
	if callErr.Message != "Rate exceeded" || callErr.Operation != opStructured {
		t.Fatalf("CallError = %+v", callErr)
	}
	if !strings.Contains(err.Error(), "Rate exceeded") {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestCombinedAnswerSummarizesBothAnswers(t *testing.T) {
	agent := &fakeAgent{answers: map[string]string{"KB-S": "numbers", "KB-U": "commentary"}}
	runtime := &fakeRuntime{reply: "final answer"}
	service := newTestService(t, agent, runtime)

	got, err := service.CombinedAnswer(context.Background(), "how are markets?")
	if err != nil {
		t.Fatalf("CombinedAnswer() error = %v", err)
	}
	if got != "final answer" {
		t.Fatalf("CombinedAnswer() = %q", got)
	}
	if len(agent.inputs) != 2 {
		t.Fatalf("knowledge base calls = %d, want 2", len(agent.inputs))
	}
	input := runtime.inputs[0]
	if aws.ToString(input.ModelId) != "summary-model" {
		t.Fatalf("ModelId = %q", aws.ToString(input.ModelId))
	}
	if aws.ToInt32(input.InferenceConfig.MaxTokens) != 512 || aws.ToFloat32(input.InferenceConfig.Temperature) != float32(0.7) {
		t.Fatalf("InferenceConfig = %+v", input.InferenceConfig)
	}
	prompt := input.Messages[0].Content[0].(*runtimetypes.ContentBlockMemberText).Value
	for _, want := range []string{"numbers", "commentary", "how are markets?"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q: %s", want, prompt)
		}
	}
}

func TestCombinedAnswerFailsWhenEitherKnowledgeBaseFails(t *testing.T) {
	agent := &fakeAgent{
		answers: map[string]string{"KB-S": "numbers"},
		errs:    map[string]error{"KB-U": errors.New("boom")},
	}
	runtime := &fakeRuntime{reply: "unused"}
	service := newTestService(t, agent, runtime)

	if _, err := service.CombinedAnswer(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
	if len(runtime.inputs) != 0 {
		t.Fatal("summary should not run after a failed knowledge base call")
	}
}

func TestRecommendParsesAndTruncates(t *testing.T) {
	agent := &fakeAgent{answers: map[string]string{"KB-S": `Here you go:
{"recommendations": [
 {"product_id": "P001", "product_name": "Growth Fund", "reason": "fits"},
 {"product_id": "P002", "product_name": "Bond Fund", "reason": "safe"},
 {"product_id": "P003", "product_name": "Cash Fund", "reason": "liquid"}
]}
Thanks!`}}
	service := newTestService(t, agent, &fakeRuntime{})

	recs, err := service.Recommend(context.Background(), RecommendationRequest{
		ClientID:   "C0001",
		ClientName: "Ada Lovelace",
		Holdings:   []string{"P009"},
		TopN:       2,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 2 || recs[1].ProductID != "P002" {
		t.Fatalf("recs = %+v", recs)
	}
	input := agent.inputs[0]
	if aws.ToString(input.RetrieveAndGenerateConfiguration.KnowledgeBaseConfiguration.ModelArn) != "arn:recommend-model" {
		t.Fatal("recommendations should use the recommend model")
	}
	prompt := aws.ToString(input.Input.Text)
	for _, want := range []string{"top 2", `"Ada Lovelace"`, "C0001", "['P009']"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestRecommendValidatesTopN(t *testing.T) {
	service := newTestService(t, &fakeAgent{}, &fakeRuntime{})
	for _, topN := range []int{0, 11} {
		if _, err := service.Recommend(context.Background(), RecommendationRequest{ClientID: "C1", TopN: topN}); err == nil {
			t.Fatalf("TopN=%d: expected error", topN)
		}
	}
}

func TestRecommendRejectsNonJSONOutput(t *testing.T) {
	agent := &fakeAgent{answers: map[string]string{"KB-S": "I cannot help with that."}}
	service := newTestService(t, agent, &fakeRuntime{})

	_, err := service.Recommend(context.Background(), RecommendationRequest{ClientID: "C1", TopN: 3})
	if !errors.Is(err, ErrNonJSONOutput) {
		t.Fatalf("error = %v, want ErrNonJSONOutput", err)
	}
}

func TestParseRecommendationsStrictJSON(t *testing.T) {
	recs, err := parseRecommendations(`{"recommendations": []}`, 3)
	if err != nil {
		t.Fatalf("parseRecommendations() error = %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Fatalf("recs = %#v, want empty slice", recs)
	}
}

func TestNewWithAPIValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.StructuredKBID = ""
	if _, err := NewWithAPI(&fakeAgent{}, &fakeRuntime{}, cfg, nil); err == nil {
		t.Fatal("expected error for missing knowledge base id")
	}
	if _, err := NewWithAPI(nil, &fakeRuntime{}, testConfig(), nil); err == nil {
		t.Fatal("expected error for missing agent client")
	}
}

func TestRecommendationPromptSkipsEmptyHoldings(t *testing.T) {
	prompt := buildRecommendationPrompt(RecommendationRequest{
		ClientID:   "C0001",
		ClientName: "Ada Lovelace",
		Holdings:   []string{"P001", "", "P003"},
		TopN:       3,
	})
	if !strings.Contains(prompt, "product_id in this list: ['P001', 'P003'].") {
		t.Fatalf("prompt = %s", prompt)
	}
	if strings.Contains(prompt, "''") {
		t.Fatalf("prompt contains an empty product id: %s", prompt)
	}
}
