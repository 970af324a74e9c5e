package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/goadmin/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

// 令牌校验错误，中间件统一转换为 InvalidCredentials
var (
	ErrMalformedToken = errors.New("token is malformed")
	ErrBadSignature   = errors.New("token signature is invalid")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenInvalid   = errors.New("token claims are invalid")
)

// Claims JWT声明
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Subject 通过校验的请求主体；Name 仅用于展示和审计，不参与鉴权
type Subject struct {
	ID        int64
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWTManager 身份令牌编解码器（HS256）
type JWTManager struct {
	secret   []byte
	issuer   string
	expireIn time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// Option JWTManager 选项
type Option func(*JWTManager)

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(m *JWTManager) { m.now = now }
}

// NewJWTManager 创建JWT管理器
func NewJWTManager(cfg *config.JWTConfig, opts ...Option) *JWTManager {
	m := &JWTManager{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		expireIn: cfg.Lifetime(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if m.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.issuer))
	}
	m.parser = jwt.NewParser(parserOpts...)
	return m
}

// GenerateToken 生成Token
func (m *JWTManager) GenerateToken(userID int64, username string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expireIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify 校验令牌：先校验签名完整性，再解析声明和有效期
//
// 签名在解析声明之前校验，因此对已签名内容的任何改动都报告 ErrBadSignature，
// 不会因为改动后的内容恰好无法解析而变成 ErrMalformedToken。
func (m *JWTManager) Verify(tokenString string) (*Subject, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformedToken
	}

	sig, err := m.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, ErrMalformedToken
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, m.secret); err != nil {
		return nil, ErrBadSignature
	}

	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrBadSignature
		default:
			return nil, ErrTokenInvalid
		}
	}
	if !token.Valid || claims.UserID <= 0 || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}

	return &Subject{
		ID:        claims.UserID,
		Name:      claims.Username,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// RefreshToken 用仍然有效的令牌换取新令牌
func (m *JWTManager) RefreshToken(tokenString string) (string, error) {
	subject, err := m.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return m.GenerateToken(subject.ID, subject.Name)
}

// GetExpireIn 获取过期时间
func (m *JWTManager) GetExpireIn() time.Duration {
	return m.expireIn
}

// TokenInfo Token信息
type TokenInfo struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// CreateTokenInfo 创建Token信息
func (m *JWTManager) CreateTokenInfo(userID int64, username string) (*TokenInfo, error) {
	token, err := m.GenerateToken(userID, username)
	if err != nil {
		return nil, err
	}

	return &TokenInfo{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(m.expireIn.Seconds()),
	}, nil
}
