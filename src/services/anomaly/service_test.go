package anomaly

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"heartbeat/src/domain"
	"heartbeat/src/platform/metrics"
)

type fakeSink struct {
	err       error
	persisted []domain.AnomalyEvent
}

func (f *fakeSink) Persist(_ context.Context, anomaly domain.AnomalyEvent) error {
	if f.err != nil {
		return f.err
	}
	f.persisted = append(f.persisted, anomaly)
	return nil
}

type fakePublisher struct {
	err       error
	published []domain.AnomalyEvent
}

func (f *fakePublisher) Publish(_ context.Context, anomaly domain.AnomalyEvent) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, anomaly)
	return nil
}

type fakeCommitter struct {
	err       error
	committed []*kgo.Record
}

func (f *fakeCommitter) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	if f.err != nil {
		return f.err
	}
	f.committed = append(f.committed, rs...)
	return nil
}

type detectorFixture struct {
	service   *Service
	sink      *fakeSink
	publisher *fakePublisher
	committer *fakeCommitter
	counters  *metrics.PipelineCounters
}

func newDetectorFixture(t *testing.T) *detectorFixture {
	t.Helper()

	sink := &fakeSink{}
	publisher := &fakePublisher{}
	committer := &fakeCommitter{}
	counters := metrics.NewPipelineCounters(prometheus.NewRegistry())

	return &detectorFixture{
		service: &Service{
			committer: committer,
			rules:     NewRules(defaultThresholds()),
			history:   newRollingHistory(),
			sink:      sink,
			publisher: publisher,
			metrics:   counters,
			logger:    zerolog.Nop(),
		},
		sink:      sink,
		publisher: publisher,
		committer: committer,
		counters:  counters,
	}
}

func rawRecord(t *testing.T, customerID string, rate int) *kgo.Record {
	t.Helper()

	event, err := domain.NewHeartbeatEventAt(uuid.New(), customerID, time.Now().UTC(), rate)
	require.NoError(t, err)

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	return &kgo.Record{Topic: "events.raw.v1", Partition: 0, Offset: 1, Value: payload}
}

func TestHandleNormalReadingCommitsWithoutVerdict(t *testing.T) {
	fx := newDetectorFixture(t)

	fx.service.handle(context.Background(), rawRecord(t, "cust_00001", 72))

	assert.Empty(t, fx.sink.persisted)
	assert.Empty(t, fx.publisher.published)
	assert.Len(t, fx.committer.committed, 1)
}

func TestHandleAnomalyPersistsPublishesAndCounts(t *testing.T) {
	fx := newDetectorFixture(t)

	fx.service.handle(context.Background(), rawRecord(t, "cust_00001", 150))

	require.Len(t, fx.sink.persisted, 1)
	require.Len(t, fx.publisher.published, 1)
	assert.Equal(t, domain.AnomalyHighHeartRate, fx.sink.persisted[0].AnomalyType)
	assert.Len(t, fx.committer.committed, 1)

	counted := testutil.ToFloat64(
		fx.counters.Anomalies.WithLabelValues(domain.AnomalyHighHeartRate, domain.SeverityHigh),
	)
	assert.Equal(t, float64(1), counted)
}

func TestHandleMalformedPayloadIsSkippedAndCommitted(t *testing.T) {
	fx := newDetectorFixture(t)

	fx.service.handle(context.Background(), &kgo.Record{Value: []byte("not-json")})

	assert.Empty(t, fx.sink.persisted)
	assert.Empty(t, fx.publisher.published)
	assert.Len(t, fx.committer.committed, 1, "malformed records are committed so they are never re-polled")
}

func TestHandlePersistFailureSkipsCommit(t *testing.T) {
	fx := newDetectorFixture(t)
	fx.sink.err = errors.New("database unreachable")

	fx.service.handle(context.Background(), rawRecord(t, "cust_00001", 150))

	assert.Empty(t, fx.publisher.published, "publish must not happen when the row was not stored")
	assert.Empty(t, fx.committer.committed, "record must stay available for re-delivery")

	counted := testutil.ToFloat64(
		fx.counters.Anomalies.WithLabelValues(domain.AnomalyHighHeartRate, domain.SeverityHigh),
	)
	assert.Equal(t, float64(0), counted, "unstored anomalies are not counted")
}

func TestHandlePublishFailureSkipsCommit(t *testing.T) {
	fx := newDetectorFixture(t)
	fx.publisher.err = errors.New("broker unreachable")

	fx.service.handle(context.Background(), rawRecord(t, "cust_00001", 150))

	assert.Len(t, fx.sink.persisted, 1)
	assert.Empty(t, fx.committer.committed)

	counted := testutil.ToFloat64(
		fx.counters.Anomalies.WithLabelValues(domain.AnomalyHighHeartRate, domain.SeverityHigh),
	)
	assert.Equal(t, float64(1), counted, "persisted anomalies count even when the publish fails")
}

func TestHandleUpdatesHistoryForEveryReading(t *testing.T) {
	fx := newDetectorFixture(t)

	fx.service.handle(context.Background(), rawRecord(t, "cust_00001", 72))
	fx.service.handle(context.Background(), rawRecord(t, "cust_00001", 110))

	require.Len(t, fx.sink.persisted, 1, "second reading spikes against the first")
	assert.Equal(t, domain.AnomalySpike, fx.sink.persisted[0].AnomalyType)
	assert.Equal(t, []int{72, 110}, fx.service.history.Recent("cust_00001"))
}

func TestHandleHistoryGrowsEvenWhenPersistFails(t *testing.T) {
	fx := newDetectorFixture(t)
	fx.sink.err = errors.New("database unreachable")

	fx.service.handle(context.Background(), rawRecord(t, "cust_00001", 150))

	assert.Equal(t, []int{150}, fx.service.history.Recent("cust_00001"))
}
