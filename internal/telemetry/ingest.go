package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/flowbench-core/internal/infrastructure/mqtt"
)

// Subscriber is the subset of *mqtt.Client Ingest needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// pressureMessage is the controller's telemetry payload.
type pressureMessage struct {
	Pressures []float64 `json:"pressures"`
}

// Ingest decodes pressure telemetry and fans it out to observers.
type Ingest struct {
	sub     Subscriber
	topic   string
	sensors int
	now     func() time.Time

	mu        sync.RWMutex
	observers []PressureObserver
	last      *Reading
}

// NewIngest returns an Ingest for benchID. sensors is the expected number
// of values per reading; zero accepts any count.
func NewIngest(sub Subscriber, benchID string, sensors int) *Ingest {
	return &Ingest{
		sub:     sub,
		topic:   mqtt.Topics{}.BenchPressure(benchID),
		sensors: sensors,
		now:     time.Now,
	}
}

// Add registers an observer.
func (in *Ingest) Add(o PressureObserver) {
	in.mu.Lock()
	in.observers = append(in.observers, o)
	in.mu.Unlock()
}

// Start subscribes to the pressure topic.
func (in *Ingest) Start() error {
	if err := in.sub.Subscribe(in.topic, 0, in.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", in.topic, err)
	}
	return nil
}

// Stop unsubscribes.
func (in *Ingest) Stop() error {
	return in.sub.Unsubscribe(in.topic)
}

// Last returns the most recent reading, or false before the first.
func (in *Ingest) Last() (Reading, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.last == nil {
		return Reading{}, false
	}
	return *in.last, true
}

// Publish delivers r to every observer. The MQTT handler calls it; tests
// and the loopback transport can call it directly.
func (in *Ingest) Publish(r Reading) {
	in.mu.Lock()
	in.last = &r
	observers := make([]PressureObserver, len(in.observers))
	copy(observers, in.observers)
	in.mu.Unlock()

	for _, o := range observers {
		o.OnPressure(r)
	}
}

func (in *Ingest) handle(_ string, payload []byte) error {
	var msg pressureMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedReading, err)
	}
	if msg.Pressures == nil {
		return fmt.Errorf("%w: missing pressures", ErrMalformedReading)
	}
	if in.sensors > 0 && len(msg.Pressures) != in.sensors {
		return fmt.Errorf("%w: got %d values, want %d", ErrMalformedReading, len(msg.Pressures), in.sensors)
	}
	in.Publish(Reading{At: in.now(), Pressures: msg.Pressures})
	return nil
}
