package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/akhbar/internal/domain"
)

func sampleEvent() Event {
	return NewEvent(domain.Headline{
		ID:          "h-1",
		Title:       "عاجل: خبر",
		Description: "تفاصيل",
		Source:      "الجزيرة",
		Category:    "سياسة",
		URL:         "https://example.com/a",
		PublishedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		IsBreaking:  true,
	}, time.Date(2025, 1, 2, 3, 5, 0, 0, time.UTC))
}

func TestNewEvent(t *testing.T) {
	evt := sampleEvent()
	require.NotEmpty(t, evt.EventID)
	require.Equal(t, EventKindBreaking, evt.Kind)
	require.Equal(t, "h-1", evt.HeadlineID)
	require.Equal(t, map[string]string{
		"kind":        EventKindBreaking,
		"headline_id": "h-1",
		"source":      "الجزيرة",
		"category":    "سياسة",
	}, evt.Attributes())
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSSenderSend(t *testing.T) {
	client := &fakeSQS{}
	s := &awsSQSSender{queueURL: "https://sqs.test/q", client: client, log: ensureLogger(nil)}

	require.NoError(t, s.Send(context.Background(), sampleEvent()))
	require.Equal(t, "https://sqs.test/q", aws.ToString(client.input.QueueUrl))
	require.Equal(t, "h-1", aws.ToString(client.input.MessageAttributes["headline_id"].StringValue))

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &decoded))
	require.Equal(t, "عاجل: خبر", decoded.Title)

	client.err = errors.New("throttled")
	require.ErrorContains(t, s.Send(context.Background(), sampleEvent()), "throttled")
}

type fakeKafkaWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSenderKeysByHeadline(t *testing.T) {
	w := &fakeKafkaWriter{}
	s := &kafkaSender{topic: "breaking", writer: w, log: ensureLogger(nil)}

	require.NoError(t, s.Send(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	require.Equal(t, []byte("h-1"), w.msgs[0].Key)
	require.Len(t, w.msgs[0].Headers, 4)

	require.NoError(t, s.Close())
	require.True(t, w.closed)
}

func TestNewKafkaSenderBuildsWriter(t *testing.T) {
	s, err := newKafkaSender(context.Background(), &KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", MaxAttempts: 2}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = newKafkaSender(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestHTTPPublisher(t *testing.T) {
	var (
		mu      sync.Mutex
		gotBody Event
		gotTok  string
	)
	status := http.StatusNoContent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		gotTok = r.Header.Get("X-Token")
		w.WriteHeader(status)
	}))
	defer srv.Close()

	reg, err := ParseRegistry([]byte(`publishers:
  - id: hook
    type: http
    http:
      url: `+srv.URL+`
      headers: {X-Token: secret}
`), ".yaml")
	require.NoError(t, err)

	pubs, err := BuildAll(context.Background(), DefaultRegistry(), reg.Enabled(), nil)
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	defer CloseAll(pubs)

	require.NoError(t, PublishAll(context.Background(), pubs, sampleEvent()))
	mu.Lock()
	require.Equal(t, "h-1", gotBody.HeadlineID)
	require.Equal(t, "secret", gotTok)
	status = http.StatusBadGateway
	mu.Unlock()

	err = PublishAll(context.Background(), pubs, sampleEvent())
	require.ErrorContains(t, err, "status 502")
}

func TestRegistryUnknownType(t *testing.T) {
	_, err := DefaultRegistry().PublisherFor(context.Background(), PublisherConfig{ID: "x", Type: "smtp"}, nil)
	require.Error(t, err)

	_, err = DefaultRegistry().PublisherFor(context.Background(), PublisherConfig{ID: "x"}, nil)
	require.Error(t, err)
}
