package entity

import "errors"

// Session представляет сессию работы с платформой.
// Токен устанавливается один раз после получения и очищается после освобождения.
type Session struct {
	credentials *Credentials
	token       string
}

func NewSession(credentials *Credentials) (*Session, error) {
	if credentials == nil {
		return nil, errors.New("credentials cannot be nil")
	}
	return &Session{credentials: credentials}, nil
}

func (s *Session) Credentials() *Credentials {
	return s.credentials
}

func (s *Session) Host() string {
	return s.credentials.Host()
}

func (s *Session) Token() string {
	return s.token
}

// Authenticate сохраняет полученный токен
func (s *Session) Authenticate(token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if s.token != "" {
		return errors.New("session already authenticated")
	}
	s.token = token
	return nil
}

// IsAuthenticated сообщает, есть ли у сессии действующий токен
func (s *Session) IsAuthenticated() bool {
	return s.token != ""
}

// Clear стирает токен после освобождения
func (s *Session) Clear() {
	s.token = ""
}
