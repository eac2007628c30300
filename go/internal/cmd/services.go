package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/topdogsports/draftroom/go/internal/draftroom/autopick"
	"github.com/topdogsports/draftroom/go/internal/draftroom/coordinator"
	"github.com/topdogsports/draftroom/go/internal/draftroom/events"
	"github.com/topdogsports/draftroom/go/internal/draftroom/gateway"
	"github.com/topdogsports/draftroom/go/internal/draftroom/room"
	"github.com/topdogsports/draftroom/go/internal/draftroom/scheduler"
	"github.com/topdogsports/draftroom/go/internal/draftroom/store"
)

type Services struct {
	Store       store.RoomStore
	Publisher   events.Publisher
	Coordinator *coordinator.Coordinator
	Rooms       *room.App
	Queues      *autopick.MemoryQueues
	Scheduler   *scheduler.Scheduler

	ConnectionManager *ConnectionManagerBundle
}

// ConnectionManagerBundle groups the WebSocket side of the gateway.
// EventConsumer is nil when NATS is disabled.
type ConnectionManagerBundle struct {
	Manager       *gateway.ConnectionManager
	WSHandler     *gateway.WebSocketHandler
	StateHandler  *gateway.StateHandler
	PickHandler   *gateway.PickHandler
	EventConsumer *gateway.EventConsumer
}

func setupServices(config *Config, pool *pgxpool.Pool) (*Services, error) {
	// Wire up dependency injection chain:
	// store → coordinator/room app → scheduler → gateway.

	var roomStore store.RoomStore
	switch config.Store.Backend {
	case "postgres":
		roomStore = store.NewPostgres(pool)
	case "memory", "":
		roomStore = store.NewMemory()
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Store.Backend)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if config.NATS.Enabled {
		jsConfig := events.DefaultJetStreamConfig()
		jsConfig.URL = getEnv("NATS_URL", config.NATS.URL)
		jsConfig.StreamName = config.NATS.StreamName
		jsConfig.SubjectPrefix = config.NATS.SubjectPrefix
		jsPublisher, err := events.NewJetStreamPublisher(jsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		publisher = jsPublisher
	}

	coord := coordinator.New(roomStore, publisher)
	rooms := room.NewApp(roomStore, publisher)

	// Queued picks first, random from the remaining pool as fallback.
	queues := autopick.NewMemoryQueues()
	strategy := autopick.Chain{
		autopick.NewQueue(roomStore, queues),
		autopick.NewRandom(roomStore),
	}
	sched := scheduler.New(roomStore, coord, strategy, config.Scheduler)

	bundle, err := setupGateway(config, coord, rooms)
	if err != nil {
		return nil, err
	}

	return &Services{
		Store:             roomStore,
		Publisher:         publisher,
		Coordinator:       coord,
		Rooms:             rooms,
		Queues:            queues,
		Scheduler:         sched,
		ConnectionManager: bundle,
	}, nil
}

func setupGateway(config *Config, coord *coordinator.Coordinator, rooms *room.App) (*ConnectionManagerBundle, error) {
	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	stateHandler := gateway.NewStateHandler(rooms)

	bundle := &ConnectionManagerBundle{
		Manager:      manager,
		WSHandler:    gateway.NewWebSocketHandler(manager),
		StateHandler: stateHandler,
		PickHandler:  gateway.NewPickHandler(coord, rooms, stateHandler),
	}

	if config.NATS.Enabled {
		consumerConfig := gateway.DefaultConsumerConfig()
		consumerConfig.URL = getEnv("NATS_URL", config.NATS.URL)
		consumerConfig.StreamName = config.NATS.StreamName
		consumerConfig.SubjectFilter = config.NATS.SubjectPrefix + ".>"
		consumer, err := gateway.NewEventConsumer(manager, consumerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create gateway event consumer: %w", err)
		}
		bundle.EventConsumer = consumer
	}
	return bundle, nil
}
