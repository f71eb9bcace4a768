package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

type fakeSink struct {
	mu       sync.Mutex
	saved    []Record
	cleared  int
	SaveErr  error
	ClearErr error
}

func (f *fakeSink) Save(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, rec)
	return f.SaveErr
}

func (f *fakeSink) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return f.ClearErr
}

func rec(i int) Record {
	v := float64(i)
	return Record{
		ID:        fmt.Sprintf("rec-%d", i),
		Kind:      KindNotified,
		RuleID:    "r1",
		Metric:    "churn_risk",
		Scope:     "acme",
		Value:     &v,
		Severity:  rules.SeverityWarning,
		Timestamp: time.Date(2024, 3, 11, 10, 0, i, 0, time.UTC),
	}
}

func TestLog_CapEvictsOldestFirst(t *testing.T) {
	l := NewLog(3)
	for i := 1; i <= 5; i++ {
		l.Append(rec(i))
		if l.Len() > l.Cap() {
			t.Fatalf("Len() = %d exceeds cap %d", l.Len(), l.Cap())
		}
	}

	got := l.List(Filter{}, 0)
	want := []string{"rec-5", "rec-4", "rec-3"}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d records, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.ID != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, r.ID, want[i])
		}
	}
	if _, err := l.Get("rec-1"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get() evicted record error = %v, want ErrRecordNotFound", err)
	}
}

func TestLog_AppendDefaults(t *testing.T) {
	l := NewLog(0)
	if l.Cap() != DefaultCapacity {
		t.Errorf("Cap() = %d, want %d", l.Cap(), DefaultCapacity)
	}
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	r := l.Append(Record{RuleID: "r1"})
	if r.ID == "" || !r.Timestamp.Equal(fixed) || r.Occurrences != 1 {
		t.Errorf("Append() = %+v, want id, timestamp and one occurrence", r)
	}
}

func TestLog_ListFilterAndLimit(t *testing.T) {
	l := NewLog(10)
	for i := 1; i <= 4; i++ {
		r := rec(i)
		if i%2 == 0 {
			r.Scope = "globex"
		}
		l.Append(r)
	}

	tests := []struct {
		name   string
		filter Filter
		limit  int
		want   []string
	}{
		{"limit newest first", Filter{}, 2, []string{"rec-4", "rec-3"}},
		{"by scope", Filter{Scope: "globex"}, 0, []string{"rec-4", "rec-2"}},
		{"by rule miss", Filter{RuleID: "r2"}, 0, nil},
		{"since", Filter{Since: rec(3).Timestamp}, 0, []string{"rec-4", "rec-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.List(tt.filter, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("List() = %d records, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.ID != tt.want[i] {
					t.Errorf("List()[%d] = %s, want %s", i, r.ID, tt.want[i])
				}
			}
		})
	}
}

func TestLog_Updates(t *testing.T) {
	sink := &fakeSink{}
	l := NewLog(10).WithSink(sink)
	l.Append(rec(1))

	later := rec(1).Timestamp.Add(30 * time.Second)
	latest := 42.0
	r, err := l.IncrementOccurrences("rec-1", &latest, "", later)
	if err != nil {
		t.Fatalf("IncrementOccurrences() error = %v", err)
	}
	if r.Occurrences != 2 || r.Value == nil || *r.Value != 42 || !r.LastOccurredAt.Equal(later) {
		t.Errorf("IncrementOccurrences() = %+v", r)
	}

	r, err = l.SetDelivery("rec-1", rules.ChannelSMS, Delivery{Status: DeliveryFailed, Error: "gateway down", Attempts: 3})
	if err != nil {
		t.Fatalf("SetDelivery() error = %v", err)
	}
	if d := r.Delivery[rules.ChannelSMS]; d.Status != DeliveryFailed || d.UpdatedAt.IsZero() {
		t.Errorf("SetDelivery() delivery = %+v", d)
	}

	if n := l.MarkAcknowledged("r1", "acme", "ops"); n != 1 {
		t.Errorf("MarkAcknowledged() = %d, want 1", n)
	}
	got, _ := l.Get("rec-1")
	if !got.Acknowledged || got.AcknowledgedBy != "ops" {
		t.Errorf("record after ack = %+v", got)
	}

	if _, err := l.IncrementOccurrences("missing", nil, "", later); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("IncrementOccurrences() missing error = %v", err)
	}

	if err := l.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	// append + increment + delivery + ack
	if len(sink.saved) != 4 {
		t.Errorf("sink saved %d writes, want 4", len(sink.saved))
	}
}

func TestLog_SinkFailureIsNotFatal(t *testing.T) {
	sink := &fakeSink{SaveErr: errors.New("db down")}
	l := NewLog(2).WithSink(sink)

	l.Append(rec(1))
	l.Close()
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after sink failure", l.Len())
	}
}

// slowSink takes a while on the first save, so a racing writer would land
// later updates first.
type slowSink struct {
	fakeSink
	pruned []int
}

func (s *slowSink) Save(ctx context.Context, rec Record) error {
	s.mu.Lock()
	first := len(s.saved) == 0
	s.mu.Unlock()
	if first {
		time.Sleep(20 * time.Millisecond)
	}
	return s.fakeSink.Save(ctx, rec)
}

func (s *slowSink) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = append(s.pruned, keep)
	return 1, nil
}

func TestLog_SinkWritesInMutationOrder(t *testing.T) {
	sink := &slowSink{}
	l := NewLog(10).WithSink(sink)

	var wg sync.WaitGroup
	l.Append(rec(1))
	for _, ch := range []rules.Channel{rules.ChannelSMS, rules.ChannelEmail} {
		wg.Add(1)
		go func(ch rules.Channel) {
			defer wg.Done()
			if _, err := l.SetDelivery("rec-1", ch, Delivery{Status: DeliverySent, Attempts: 1}); err != nil {
				t.Errorf("SetDelivery(%s) error = %v", ch, err)
			}
		}(ch)
	}
	wg.Wait()
	l.Close()

	if len(sink.saved) != 3 {
		t.Fatalf("sink saved %d writes, want 3", len(sink.saved))
	}
	if sink.saved[0].Delivery[rules.ChannelSMS].Status == DeliverySent {
		t.Error("first write must be the appended record")
	}
	final := sink.saved[len(sink.saved)-1]
	if final.Delivery[rules.ChannelSMS].Status != DeliverySent || final.Delivery[rules.ChannelEmail].Status != DeliverySent {
		t.Errorf("last persisted delivery = %+v, want both channels sent", final.Delivery)
	}

	// writes after Close stay in memory
	l.Append(rec(2))
	if len(sink.saved) != 3 || l.Len() != 2 {
		t.Errorf("after Close saved = %d, Len = %d", len(sink.saved), l.Len())
	}
}

func TestLog_PrunesSinkOnEviction(t *testing.T) {
	sink := &slowSink{}
	l := NewLog(2).WithSink(sink)
	for i := 1; i <= 4; i++ {
		l.Append(rec(i))
	}
	if err := l.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	// capacity 2 prunes on every eviction
	if len(sink.pruned) != 2 || sink.pruned[0] != 2 {
		t.Errorf("prunes = %v, want [2 2]", sink.pruned)
	}
	l.Close()
}

func TestLog_ClearAndLoad(t *testing.T) {
	sink := &fakeSink{}
	l := NewLog(3).WithSink(sink)
	l.Append(rec(1))
	l.Append(rec(2))

	if err := l.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	sink.ClearErr = errors.New("db down")
	if err := l.Clear(context.Background()); err == nil {
		t.Error("Clear() error = nil, want sink failure")
	}
	if l.Len() != 0 || sink.cleared != 2 {
		t.Errorf("after Clear() Len = %d cleared = %d", l.Len(), sink.cleared)
	}

	l.Load([]Record{rec(1), rec(2), rec(3), rec(4), rec(4)})
	got := l.List(Filter{}, 0)
	if len(got) != 3 || got[0].ID != "rec-4" || got[2].ID != "rec-2" {
		t.Errorf("List() after Load = %+v", got)
	}
	if len(sink.saved) != 2 {
		t.Errorf("Load() should not write through, sink saved %d", len(sink.saved))
	}
}

func TestLog_ReturnsCopies(t *testing.T) {
	l := NewLog(3)
	l.Append(Record{ID: "a", Channels: []rules.Channel{rules.ChannelApp}})

	got := l.List(Filter{}, 0)
	got[0].Channels[0] = rules.ChannelSMS

	again, _ := l.Get("a")
	if again.Channels[0] != rules.ChannelApp {
		t.Error("List() must return copies")
	}
}
