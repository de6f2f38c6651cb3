package gap

import (
	"fmt"

	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const ChangeSubject = "confession.changes"

var Nc *nats.Conn

// InitializeToNats connects to the broker when one is configured.
func InitializeToNats() error {
	url := viper.GetString("nats.url")
	if len(url) == 0 {
		return nil
	}

	conn, err := nats.Connect(url, nats.Name("confession"), nats.MaxReconnects(-1))
	if err != nil {
		return fmt.Errorf("unable to connect to nats: %v", err)
	}
	Nc = conn
	log.Info().Str("url", url).Msg("Connected to nats.")
	return nil
}

type ChangeEvent struct {
	Origin     string `json:"origin"`
	Collection string `json:"collection"`
}

// Bridge relays change signals between instances sharing one backend.
type Bridge struct {
	conn   *nats.Conn
	hub    *store.Hub
	origin string
	sub    *nats.Subscription
}

func NewBridge(conn *nats.Conn, hub *store.Hub) (*Bridge, error) {
	bridge := &Bridge{
		conn:   conn,
		hub:    hub,
		origin: uuid.NewString(),
	}

	sub, err := conn.Subscribe(ChangeSubject, bridge.handle)
	if err != nil {
		return nil, fmt.Errorf("unable to subscribe %s: %v", ChangeSubject, err)
	}
	bridge.sub = sub
	hub.SetBroadcaster(bridge)

	return bridge, nil
}

func (b *Bridge) Publish(collection string) {
	payload, err := jsoniter.Marshal(ChangeEvent{Origin: b.origin, Collection: collection})
	if err != nil {
		return
	}
	if err := b.conn.Publish(ChangeSubject, payload); err != nil {
		log.Warn().Err(err).Str("collection", collection).Msg("Unable to broadcast change...")
	}
}

func (b *Bridge) handle(msg *nats.Msg) {
	var event ChangeEvent
	if err := jsoniter.Unmarshal(msg.Data, &event); err != nil {
		log.Warn().Err(err).Msg("Failed to parse change event...")
		return
	}
	if event.Origin == b.origin || len(event.Collection) == 0 {
		return
	}
	b.hub.Deliver(event.Collection)
}

func (b *Bridge) Close() error {
	b.hub.SetBroadcaster(nil)
	if b.sub != nil {
		return b.sub.Unsubscribe()
	}
	return nil
}
