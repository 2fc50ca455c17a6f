package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dealerkit/recon/internal/config"
)

// ErrInvalidCredentials 用户名或密码错误
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService 认证服务（单管理员账号）
type AuthService struct {
	rdb *redis.Client
	cfg *config.Config
}

// NewAuthService 创建认证服务
func NewAuthService(rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{rdb: rdb, cfg: cfg}
}

// TokenPair Token对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 管理员登录，凭证与配置逐字节恒定时间比较
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*TokenPair, error) {
	if s.cfg.Admin.Password == "" {
		return nil, errors.New("admin password not configured")
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Admin.Password)) == 1
	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}
	return s.generateTokenPair(ctx)
}

// generateTokenPair 生成访问/刷新Token对。
// 刷新Token的jti写入redis，未配置redis时退化为无状态JWT。
func (s *AuthService) generateTokenPair(ctx context.Context) (*TokenPair, error) {
	now := time.Now()
	accessExpire := s.cfg.JWT.AccessTokenExpire
	refreshExpire := s.cfg.JWT.RefreshTokenExpire

	accessClaims := jwt.MapClaims{
		"sub":   "admin",
		"uid":   "admin",
		"name":  "Administrator",
		"roles": []string{"admin"},
		"iss":   s.cfg.JWT.Issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(accessExpire).Unix(),
		"jti":   uuid.New().String(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).
		SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub":  "admin",
		"type": "refresh",
		"iss":  s.cfg.JWT.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(refreshExpire).Unix(),
		"jti":  refreshJti,
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).
		SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, "token:refresh:"+refreshJti, "admin", refreshExpire).Err(); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(accessExpire.Seconds()),
	}, nil
}

// RefreshToken 刷新Token对，旧的刷新jti作废
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if claims["type"] != "refresh" {
		return nil, ErrInvalidCredentials
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, ErrInvalidCredentials
	}

	if s.rdb != nil {
		if err := s.rdb.Get(ctx, "token:refresh:"+jti).Err(); err != nil {
			return nil, ErrInvalidCredentials
		}
		s.rdb.Del(ctx, "token:refresh:"+jti)
	}

	return s.generateTokenPair(ctx)
}

// Logout 注销，删除刷新Token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		// 无法解析的token直接视为已注销
		return nil
	}
	if jti, _ := claims["jti"].(string); jti != "" && s.rdb != nil {
		s.rdb.Del(ctx, "token:refresh:"+jti)
	}
	return nil
}

func (s *AuthService) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
