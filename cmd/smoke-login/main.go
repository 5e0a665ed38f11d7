package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gatekeep.org/internal/audit"
	"gatekeep.org/internal/auth"
	"gatekeep.org/internal/config"
	"gatekeep.org/internal/directory/ldapdir"
	"gatekeep.org/internal/obs"
	"gatekeep.org/internal/store/pg"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

// Exercises the full credential lifecycle against a live database:
// provision, authenticate, grant, issue, verify from the right and wrong
// address, invalidate, re-verify.
func main() {
	log.SetFlags(0)
	metricsAddr := flag.String("metrics-addr", "", "expose Prometheus metrics on this address for the duration of the run")
	flag.Parse()

	obs.Init()
	obs.InitBuildInfo(version, commit)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", obs.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("missing GATEKEEP_PG_DSN")
	}
	obs.SetDebug(cfg.Debug)

	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	opts := []auth.Option{}
	if cfg.DirectoryLogin {
		dir, err := ldapdir.New(cfg.LDAP())
		if err != nil {
			log.Fatalf("directory adapter: %v", err)
		}
		opts = append(opts, auth.WithDirectory(dir))
	}
	svc, err := auth.New(store, cfg.Policy(), opts...)
	if err != nil {
		log.Fatalf("service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	ctx = audit.WithRequestID(ctx, audit.NewRequestID())

	username := "smoke-" + uuid.NewString()[:8]
	const secret = "smoke-secret-pw"
	const clientIP = "10.0.0.5"

	if _, err := svc.CreateIdentity(ctx, username, secret, auth.KindLocal); err != nil {
		log.Fatalf("create identity: %v", err)
	}
	ok, canonical, err := svc.Authenticate(ctx, username, secret)
	if err != nil || !ok || canonical != username {
		log.Fatalf("authenticate: ok=%v canonical=%q err=%v", ok, canonical, err)
	}
	if ok, _, _ := svc.Authenticate(ctx, username, "wrong-secret"); ok {
		log.Fatal("authenticate accepted a wrong secret")
	}

	// The seeded catalog normally carries "read"; an empty catalog still
	// yields a successful zero-match grant.
	if ok, msg := svc.Grant(ctx, username, []string{"read"}); !ok {
		log.Fatalf("grant: %s", msg)
	}

	token, err := svc.IssueToken(ctx, username, clientIP, 1)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	sctx, check, err := svc.ContextWithSession(ctx, token, clientIP)
	if err != nil || !check.OK || check.Username != username {
		log.Fatalf("verify token: %+v err=%v", check, err)
	}
	if who, ok := auth.UsernameFromContext(sctx); !ok || who != username {
		log.Fatal("session context lost the username")
	}
	if auth.HasPermission(sctx, "read") != (len(check.Permissions) > 0) {
		log.Fatal("session permissions inconsistent with the verified check")
	}
	if check, _ := svc.VerifyToken(ctx, token, "10.0.0.9"); check.OK {
		log.Fatal("token verified from a foreign address")
	}

	if ok, msg := svc.InvalidateToken(ctx, token, clientIP); !ok {
		log.Fatalf("invalidate token: %s", msg)
	}
	if check, _ := svc.VerifyToken(ctx, token, clientIP); check.OK {
		log.Fatal("token verified after invalidation")
	}

	info, err := svc.ExtendedInfo(ctx, username)
	if err != nil {
		log.Fatalf("extended info: %v", err)
	}

	fmt.Printf("smoke-login passed: identity=%s auth_kind=%s permissions=%d\n",
		username, info.Identity["auth_kind"], len(info.Permissions))
}
