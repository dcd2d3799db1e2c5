package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"

	"github.com/avstrong/hotel/internal/calendar"
	"github.com/avstrong/hotel/internal/config"
	"github.com/avstrong/hotel/internal/hotel"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/migration"
	"github.com/avstrong/hotel/internal/queue"
	"github.com/avstrong/hotel/internal/storage/memory"
)

func Run(l *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	conf, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var publisher hotel.Publisher

	if conf.AMQPURL != "" {
		p, err := queue.Dial(conf.AMQPURL, conf.AMQPQueue, l)
		if err != nil {
			return fmt.Errorf("connect to event queue: %w", err)
		}

		defer func() {
			if err := p.Close(); err != nil {
				l.LogErrorf("Failed to close event queue: %v", err.Error())
			}
		}()

		publisher = p

		l.LogInfo("Publishing booking events to queue %s", conf.AMQPQueue)
	}

	//nolint:exhaustruct
	h, err := hotel.New(hotel.Config{
		L:            l,
		Tracer:       otel.Tracer("github.com/avstrong/hotel"),
		Storage:      memory.New(memory.Config{L: l}),
		Publisher:    publisher,
		RoomCount:    conf.RoomCount,
		StandardRate: conf.StandardRate,
	})
	if err != nil {
		return fmt.Errorf("init hotel: %w", err)
	}

	l.LogInfo("Hotel has %d rooms at %.2f per night", len(h.Rooms()), h.StandardRate())

	if conf.Seed {
		if err := migration.Up(ctx, l, h, conf.ReportDate); err != nil {
			return fmt.Errorf("up seed migration: %w", err)
		}

		l.LogInfo("Seed migration has been applied")
	}

	return report(ctx, l, h, conf.ReportDate)
}

type reader interface {
	ReservationsByDate(ctx context.Context, date calendar.Date) ([]*hotel.Reservation, error)
	AvailableRoomsByDate(ctx context.Context, date calendar.Date) ([]hotel.Room, error)
	Blocks(ctx context.Context) ([]*hotel.Block, error)
}

// report logs the occupancy of one night.
func report(ctx context.Context, l *logger.Logger, h reader, date calendar.Date) error {
	reservations, err := h.ReservationsByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("reservations on %v: %w", date, err)
	}

	rooms, err := h.AvailableRoomsByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("available rooms on %v: %w", date, err)
	}

	blocks, err := h.Blocks(ctx)
	if err != nil {
		return fmt.Errorf("blocks: %w", err)
	}

	l.LogInfo("Night of %v: %d reservations, %d rooms available", date, len(reservations), len(rooms))

	for _, res := range reservations {
		l.LogInfo("  reservation %d: room %d, %v, cost %.2f", res.ID, res.RoomNumber, res.Stay, res.Cost())
	}

	for _, b := range blocks {
		if b.Stay.Includes(date) {
			l.LogInfo("  block %d: rooms %v, %d unclaimed, rate %.2f", b.ID, b.RoomNumbers, len(b.AvailableRooms), b.Rate)
		}
	}

	return nil
}
