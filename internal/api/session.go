package api

import "sync"

// Session хранит учётные данные активного пользователя между запросами.
// Передаётся клиенту явно, чтобы в тестах можно было подменять сессию.
type Session struct {
	mu     sync.RWMutex
	token  string
	userID string
}

// NewSession создаёт пустую неаутентифицированную сессию.
func NewSession() *Session {
	return &Session{}
}

// Set сохраняет токен доступа и идентификатор пользователя.
func (s *Session) Set(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.userID = userID
}

// Token возвращает сохранённый токен доступа.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// UserID возвращает идентификатор аутентифицированного пользователя.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Authenticated сообщает, есть ли в сессии активный пользователь.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.userID != ""
}

// Clear сбрасывает сессию. Вызывается при ответе 401 от сервера.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.userID = ""
}
