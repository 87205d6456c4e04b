package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-client/internal/apiclient"
	"github.com/psds-microservice/helpdesk-client/internal/backend"
	"github.com/psds-microservice/helpdesk-client/internal/chatsync"
	"github.com/psds-microservice/helpdesk-client/internal/config"
	"github.com/psds-microservice/helpdesk-client/internal/credstore"
	"github.com/psds-microservice/helpdesk-client/internal/navigate"
	"github.com/psds-microservice/helpdesk-client/internal/operator"
	"github.com/psds-microservice/helpdesk-client/internal/router"
	"github.com/psds-microservice/helpdesk-client/internal/service"
	"github.com/psds-microservice/helpdesk-client/internal/session"
	"github.com/psds-microservice/helpdesk-client/internal/ticket"
)

// Client — собранный клиент helpdesk: сессия, HTTP-клиент, сервисы.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger

	Session  *session.Store
	API      *apiclient.Client
	Cache    *ticket.Cache
	Tickets  *service.TicketService
	Operator *operator.Service
}

// NewClient wires the client over the given credential store. A nil
// persist opens the bbolt session file from cfg.
func NewClient(cfg *config.Config, persist credstore.Store, nav navigate.Navigator, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if persist == nil {
		b, err := credstore.NewBolt(cfg.SessionPath)
		if err != nil {
			return nil, fmt.Errorf("credstore: %w", err)
		}
		persist = b
	}

	sess := session.NewContext(persist, logger)
	api, err := apiclient.New(apiclient.Config{
		BaseURL:     cfg.APIURL,
		Timeout:     cfg.HTTPTimeout,
		RetryDelay:  cfg.RetryDelay,
		Credentials: sess,
		Navigator:   nav,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("apiclient: %w", err)
	}
	cache := ticket.NewCache(logger)
	return &Client{
		cfg:      cfg,
		logger:   logger,
		Session:  session.NewStore(sess, api, logger),
		API:      api,
		Cache:    cache,
		Tickets:  service.NewTicketService(api, cache, sess, nav, logger),
		Operator: operator.New(api, cache, sess, logger),
	}, nil
}

// ChatView builds the polling view of one ticket. Operators read the
// ticket through the operator endpoint.
func (c *Client) ChatView(ticketID string, asOperator bool, cfg chatsync.Config) (*chatsync.View, error) {
	cfg.TicketID = ticketID
	cfg.Messages = c.API
	cfg.Ticket = c.API.GetTicket
	if asOperator {
		cfg.Ticket = c.API.OperatorTicket
	}
	cfg.Cache = c.Cache
	if cfg.Interval <= 0 {
		cfg.Interval = c.cfg.ChatPollInterval
	}
	if cfg.Until == nil {
		cfg.Until = c.Session.Context().Ended()
	}
	if cfg.Logger == nil {
		cfg.Logger = c.logger
	}
	return chatsync.NewView(cfg)
}

// Dashboard builds the operator dashboard with the configured interval.
func (c *Client) Dashboard(cfg operator.DashboardConfig) *operator.Dashboard {
	if cfg.Interval <= 0 {
		cfg.Interval = c.cfg.DashboardPollInterval
	}
	if cfg.Until == nil {
		cfg.Until = c.Session.Context().Ended()
	}
	return c.Operator.Dashboard(cfg)
}

// DevServer — встроенный сервер для разработки (режим devserver).
type DevServer struct {
	Store   *backend.Store
	httpSrv *http.Server
	logger  *slog.Logger
}

func NewDevServer(cfg *config.Config, logger *slog.Logger) *DevServer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	store := backend.NewStore(backend.Options{Logger: logger})
	return &DevServer{
		Store:  store,
		logger: logger,
		httpSrv: &http.Server{
			Addr:              cfg.DevServerAddr,
			Handler:           router.New(store, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Seed registers an account, optionally with the operator role.
func (d *DevServer) Seed(email, password string, operator bool) error {
	if _, err := d.Store.Register(email, password, nil); err != nil {
		return fmt.Errorf("seed %s: %w", email, err)
	}
	if operator {
		return d.Store.Promote(email)
	}
	return nil
}

// Run serves until ctx is cancelled.
func (d *DevServer) Run(ctx context.Context) error {
	d.logger.Info("dev server listening", "addr", d.httpSrv.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := d.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
