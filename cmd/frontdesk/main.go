package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicdesk/internal/api"
	"clinicdesk/internal/config"
	"clinicdesk/internal/coordinator"
	"clinicdesk/internal/models"
	"clinicdesk/internal/queue"
	"clinicdesk/internal/realtime"
	"clinicdesk/internal/session"
	"clinicdesk/internal/telemetry"
)

func main() {
	cfg := config.Load()
	shutdownTracing := telemetry.Setup("frontdesk", telemetry.Config{
		Endpoint: cfg.OTLPEndpoint,
		Insecure: cfg.OTLPInsecure,
	})

	sess := session.New()
	client := api.NewClient(api.Options{
		BaseURL:     cfg.APIBaseURL,
		TokenSource: sess.Token,
		OnUnauthorized: func() {
			log.Printf("session expired, clearing credentials")
			sess.Clear()
		},
		ReadRetries: cfg.ReadRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	login, err := client.Login(ctx, cfg.Email, cfg.Password)
	cancel()
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	sess.Establish(login.User, login.Token)
	log.Printf("signed in user=%s role=%s", login.User.Email, login.User.Role)

	store := queue.NewStore()
	events := realtime.NewClient(realtime.Options{
		URL:         cfg.RealtimeURL,
		BackoffBase: cfg.ReconnectBase,
		MaxAttempts: cfg.ReconnectAttempts,
	})
	coord := coordinator.New(store, client, events, coordinator.Options{
		RevalidateDebounce: cfg.RevalidateDebounce,
	})
	unbind := coord.BindRealtime(events)
	defer unbind()

	if err := events.Connect(sess.Token()); err != nil {
		log.Printf("realtime connect: %v", err)
	} else if err := events.JoinRoom(realtime.RoomQueue); err != nil {
		log.Printf("join room: %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	if err := coord.Revalidate(ctx); err != nil {
		log.Printf("initial fetch: %v", err)
	}
	cancel()

	// Polling is the fallback convergence path when the push channel is down.
	pollDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollDone:
				return
			case <-ticker.C:
				if events.State() != models.ConnConnected {
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					if err := coord.Revalidate(ctx); err != nil {
						log.Printf("poll: %v", err)
					}
					cancel()
				}
				logQueue(store)
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	close(pollDone)
	events.Close()
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Logout(ctx); err != nil {
		log.Printf("logout: %v", err)
	}
	sess.Clear()
	if err := shutdownTracing(ctx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}

func logQueue(store *queue.Store) {
	serving, err := store.NowServing()
	if err != nil {
		log.Printf("queue integrity: %v", err)
		return
	}
	servingName := "-"
	if serving != nil {
		servingName = serving.PatientName
	}
	nextName := "-"
	for _, visit := range store.Entries() {
		if visit.Status == models.StatusWaiting {
			nextName = visit.PatientName
			break
		}
	}
	log.Printf("queue size=%d waiting=%d now_serving=%s next=%s connection=%s",
		store.Len(), store.CountByStatus(models.StatusWaiting), servingName, nextName, store.Connection())
}
