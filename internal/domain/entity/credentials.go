package entity

import (
	"errors"
	"net/url"
	"strings"
)

// Credentials содержит адрес платформы, учетные данные и параметры запроса статистики.
// Неизменяемы после создания.
type Credentials struct {
	host        string
	username    string
	password    string
	queryParams url.Values
}

// NewCredentials создает Credentials; все строки обрезаются по краям
func NewCredentials(host, username, password string, queryParams url.Values) (*Credentials, error) {
	host = strings.TrimSpace(host)
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	if host == "" {
		return nil, errors.New("host cannot be empty")
	}
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}

	params := url.Values{}
	for key, values := range queryParams {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		for _, v := range values {
			params.Add(key, strings.TrimSpace(v))
		}
	}

	return &Credentials{
		host:        host,
		username:    username,
		password:    password,
		queryParams: params,
	}, nil
}

// Host возвращает адрес платформы
func (c *Credentials) Host() string {
	return c.host
}

// Username возвращает имя пользователя
func (c *Credentials) Username() string {
	return c.username
}

// Password возвращает пароль
func (c *Credentials) Password() string {
	return c.password
}

// QueryParams возвращает копию параметров запроса статистики
func (c *Credentials) QueryParams() url.Values {
	out := make(url.Values, len(c.queryParams))
	for k, v := range c.queryParams {
		out[k] = append([]string(nil), v...)
	}
	return out
}
