package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/columk1/threads-clone-sub001/internal/config"
	"github.com/columk1/threads-clone-sub001/internal/migrations"
	"github.com/columk1/threads-clone-sub001/mailer"
	"github.com/columk1/threads-clone-sub001/server"
	"github.com/columk1/threads-clone-sub001/sessions"
	fakesessionrepo "github.com/columk1/threads-clone-sub001/sessions/repofakes"
	sessionrepo "github.com/columk1/threads-clone-sub001/sessions/repopg"
	"github.com/columk1/threads-clone-sub001/signup"
	"github.com/columk1/threads-clone-sub001/users"
	fakeuserrepo "github.com/columk1/threads-clone-sub001/users/repofake"
	userrepo "github.com/columk1/threads-clone-sub001/users/repopg"
	"github.com/columk1/threads-clone-sub001/verification"
	fakecoderepo "github.com/columk1/threads-clone-sub001/verification/repofake"
	coderepo "github.com/columk1/threads-clone-sub001/verification/repopg"
)

type stores struct {
	users    users.UserRepo
	sessions sessions.Repo
	codes    verification.Repo
	redis    *redis.Client
	db       *sql.DB
}

func (s *stores) close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// openStores connects to Postgres when DATABASE_DSN is set and falls back
// to in-memory repositories otherwise. Redis is optional.
func openStores(ctx context.Context, c config.Config) (*stores, error) {
	st := &stores{}

	if dsn := c.GetDatabaseDSN(); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("db open error: %w", err)
		}
		st.db = db
		if err := migrations.Up(ctx, db); err != nil {
			st.close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
		timeout := c.GetStoreTimeout()
		st.users = userrepo.NewPostgresRepository(db, timeout)
		st.sessions = sessionrepo.NewPostgresRepository(db, timeout)
		st.codes = coderepo.NewPostgresRepository(db, timeout)
		log.Info().Msg("Using Postgres stores")
	} else {
		st.users = fakeuserrepo.NewFakeUserRepo()
		st.sessions = fakesessionrepo.NewFakeSessionRepo()
		st.codes = fakecoderepo.NewFakeCodeRepo()
		log.Warn().Msg("DATABASE_DSN not set, using in-memory stores")
	}

	if addr := c.GetRedisAddr(); addr != "" {
		st.redis = redis.NewClient(&redis.Options{Addr: addr})
		if err := st.redis.Ping(ctx).Err(); err != nil {
			st.close()
			return nil, fmt.Errorf("redis ping %s: %w", addr, err)
		}
		log.Info().Str("addr", addr).Msg("Using Redis resend limiter")
	}
	return st, nil
}

func buildDeps(c config.Config, st *stores) (server.Deps, error) {
	hasher := users.BcryptHasher{}

	manager, err := sessions.NewManager[*users.User](st.sessions, st.users.GetByID, c.GetSessionTTL())
	if err != nil {
		return server.Deps{}, err
	}

	signupService, err := signup.NewService(st.users, hasher)
	if err != nil {
		return server.Deps{}, err
	}

	var limiter verification.ResendLimiter = verification.NewStoreResendLimiter(st.codes, c.GetResendInterval(), nil)
	if st.redis != nil {
		limiter = verification.NewRedisResendLimiter(st.redis, "", c.GetResendInterval())
	}
	flow, err := verification.NewFlow(st.codes, st.users, limiter,
		verification.WithCodeTTL(c.GetCodeTTL()),
		verification.WithMaxAttempts(c.GetMaxCodeAttempts()),
	)
	if err != nil {
		return server.Deps{}, err
	}

	return server.Deps{
		Users:        st.users,
		Hasher:       hasher,
		Sessions:     manager,
		Signup:       signupService,
		Verification: flow,
		Mailer:       newMailer(c),
	}, nil
}

func newMailer(c config.Config) mailer.Mailer {
	host := c.GetSmtpHost()
	if host == "" {
		log.Warn().Msg("SMTP_HOST not set, verification codes will be logged")
		return mailer.LogMailer{}
	}
	port, err := strconv.Atoi(c.GetSmtpPort())
	if err != nil {
		log.Warn().Str("port", c.GetSmtpPort()).Msg("Invalid SMTP_PORT, using 587")
		port = 587
	}
	return mailer.NewSMTPMailer(host, port, c.GetSmtpAccount(), c.GetSmtpPassword(), c.GetAppName())
}
