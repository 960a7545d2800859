package workspace

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/ogurasousui/personnel-backoffice/internal/core/projection"
	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/logger"
)

const (
	// DefaultSessionTTL は操作のないセッションが破棄されるまでの時間です。
	DefaultSessionTTL = 30 * time.Minute
	// DefaultMaxPageSize はページサイズの上限の既定値です。
	DefaultMaxPageSize = 100
)

// Session は 1 クライアント分の画面状態で、リソースごとに Controller を持ちます。
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	controllers map[record.Kind]*Controller
	newStore    func(record.Kind) *Store
	deps        Dependencies
}

// Controller は kind の Controller を返します。初回呼び出し時に生成します。
func (s *Session) Controller(kind record.Kind) (*Controller, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("kind %q: %w", kind, record.ErrInvalidKind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controllers[kind]; ok {
		return c, nil
	}
	c := NewController(s.newStore(kind), s.deps)
	s.controllers[kind] = c
	return c, nil
}

// ManagerConfig はセッション管理の設定です。
type ManagerConfig struct {
	SessionTTL      time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

// Manager はセッションの生成・取得・破棄を行います。
type Manager struct {
	cfg      ManagerConfig
	deps     Dependencies
	sessions *gocache.Cache
	logger   *logger.Logger
}

// NewManager は Manager を生成します。
func NewManager(cfg ManagerConfig, deps Dependencies) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = projection.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = DefaultMaxPageSize
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = NewLogNotifier(deps.Logger)
	}
	if deps.Projector == nil {
		deps.Projector = projection.New(projection.WithDefaultPageSize(cfg.DefaultPageSize))
	}

	m := &Manager{
		cfg:      cfg,
		deps:     deps,
		sessions: gocache.New(cfg.SessionTTL, cfg.SessionTTL/2),
		logger:   deps.Logger.Named("sessions"),
	}
	m.sessions.OnEvicted(func(id string, _ any) {
		m.logger.Debugw("session closed", "session_id", id)
		m.deps.Metrics.SetActiveSessions(m.sessions.ItemCount())
	})
	return m
}

// Open は新しいセッションを開始します。
func (m *Manager) Open() *Session {
	s := &Session{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		controllers: make(map[record.Kind]*Controller),
		newStore: func(kind record.Kind) *Store {
			return NewStore(kind, m.cfg.DefaultPageSize, m.cfg.MaxPageSize)
		},
		deps: m.deps,
	}
	m.sessions.SetDefault(s.ID, s)
	m.deps.Metrics.SetActiveSessions(m.sessions.ItemCount())
	m.logger.Debugw("session opened", "session_id", s.ID)
	return s
}

// Get は id のセッションを返し、有効期限を延長します。
// 延長は登録済みの場合のみ行うため、並行して破棄されたセッションは復活しません。
func (m *Manager) Get(id string) (*Session, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	s := v.(*Session)
	if err := m.sessions.Replace(id, s, gocache.DefaultExpiration); err != nil {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// Controller は id のセッションにおける kind の Controller を返します。
func (m *Manager) Controller(id string, kind record.Kind) (*Controller, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return s.Controller(kind)
}

// Close はセッションを破棄します。
func (m *Manager) Close(id string) error {
	if _, ok := m.sessions.Get(id); !ok {
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	m.sessions.Delete(id)
	return nil
}

// Count は有効なセッション数を返します。
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}
