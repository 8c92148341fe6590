package bot

import "sync"

// ChatStore - потокобезопасное in-memory хранилище состояния чатов бота:
// токен доступа к серверу сбора и идентификатор активного прогона.
type ChatStore struct {
	mu     sync.RWMutex
	tokens map[int64]string // map[chatID]token
	runs   map[int64]string // map[chatID]runID
}

// NewChatStore создает новый экземпляр ChatStore.
func NewChatStore() *ChatStore {
	return &ChatStore{
		tokens: make(map[int64]string),
		runs:   make(map[int64]string),
	}
}

// SetToken сохраняет токен доступа для чата.
func (s *ChatStore) SetToken(chatID int64, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[chatID] = token
}

// Token возвращает токен доступа для чата.
func (s *ChatStore) Token(chatID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[chatID]
	return token, ok
}

// ForgetToken удаляет токен чата, например после ответа 401.
func (s *ChatStore) ForgetToken(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, chatID)
}

// StartRun запоминает активный прогон чата.
// Возвращает false, если у чата уже есть активный прогон.
func (s *ChatStore) StartRun(chatID int64, runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.runs[chatID]; busy {
		return false
	}
	s.runs[chatID] = runID
	return true
}

// Run возвращает активный прогон чата.
func (s *ChatStore) Run(chatID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runID, ok := s.runs[chatID]
	return runID, ok
}

// FinishRun удаляет активный прогон чата.
func (s *ChatStore) FinishRun(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, chatID)
}
