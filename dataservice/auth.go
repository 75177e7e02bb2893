package dataservice

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"rulesengine/rule"
)

// tokenSourceCache caches OAuth2 client-credentials token sources by
// config fingerprint so repeated calls against the same OAuth2-secured
// data service reuse the underlying token (and its refresh), rather than
// minting a fresh client-credentials grant on every call — the same
// process-wide reuse idiom the teacher applies to database connections.
var tokenSourceCache sync.Map // map[string]oauth2.TokenSource

// oidcVerifierCache caches OIDC provider discovery + verifier construction
// by issuer URL, since discovery is itself a network round trip.
var oidcVerifierCache sync.Map // map[string]*oidc.IDTokenVerifier

// applyAuth mutates req's headers to carry the credentials described by
// auth, per spec.md §4.4's tagged union.
func applyAuth(ctx context.Context, req *http.Request, auth rule.AuthConfig) error {
	switch auth.Kind {
	case rule.AuthNone, "":
		return nil
	case rule.AuthAPIKey:
		req.Header.Set(auth.HeaderName, auth.Key)
		return nil
	case rule.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Token)
		return nil
	case rule.AuthBasic:
		req.SetBasicAuth(auth.User, auth.Password)
		return nil
	case rule.AuthOAuth2:
		return applyOAuth2(ctx, req, auth)
	default:
		return fmt.Errorf("unknown auth kind %q", auth.Kind)
	}
}

func authFingerprint(auth rule.AuthConfig) string {
	return auth.TokenURL + "|" + auth.ClientID + "|" + auth.Issuer
}

// applyOAuth2 fetches (and caches) a client-credentials token for auth and
// sets it as a bearer token. When auth.Issuer is set, the token is also
// verified as an OIDC ID token against that issuer's discovery document —
// used when a data service requires a verified service-identity token
// rather than a bare opaque bearer token, per the teacher's
// security.OIDCProvider discovery flow.
func applyOAuth2(ctx context.Context, req *http.Request, auth rule.AuthConfig) error {
	key := authFingerprint(auth)
	tsAny, ok := tokenSourceCache.Load(key)
	var ts oauth2.TokenSource
	if ok {
		ts = tsAny.(oauth2.TokenSource)
	} else {
		cc := &clientcredentials.Config{
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			TokenURL:     auth.TokenURL,
			Scopes:       auth.Scopes,
		}
		ts = cc.TokenSource(ctx)
		actual, _ := tokenSourceCache.LoadOrStore(key, ts)
		ts = actual.(oauth2.TokenSource)
	}

	token, err := ts.Token()
	if err != nil {
		return fmt.Errorf("oauth2 token fetch failed: %w", err)
	}

	if auth.Issuer != "" {
		if err := verifyIDToken(ctx, auth.Issuer, auth.ClientID, token); err != nil {
			return fmt.Errorf("oidc id-token verification failed: %w", err)
		}
	}

	token.SetAuthHeader(req)
	return nil
}

func verifyIDToken(ctx context.Context, issuer, clientID string, token *oauth2.Token) error {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		// No ID token present on this grant (common for pure
		// client-credentials flows); nothing to verify.
		return nil
	}

	var verifier *oidc.IDTokenVerifier
	if cached, ok := oidcVerifierCache.Load(issuer); ok {
		verifier = cached.(*oidc.IDTokenVerifier)
	} else {
		provider, err := oidc.NewProvider(ctx, issuer)
		if err != nil {
			return fmt.Errorf("oidc provider discovery failed for %q: %w", issuer, err)
		}
		verifier = provider.Verifier(&oidc.Config{ClientID: clientID})
		actual, _ := oidcVerifierCache.LoadOrStore(issuer, verifier)
		verifier = actual.(*oidc.IDTokenVerifier)
	}

	if _, err := verifier.Verify(ctx, rawIDToken); err != nil {
		return err
	}
	return nil
}

// clearAuthCaches empties the process-wide token-source and OIDC-verifier
// caches. Exposed for tests.
func clearAuthCaches() {
	tokenSourceCache.Range(func(key, _ interface{}) bool {
		tokenSourceCache.Delete(key)
		return true
	})
	oidcVerifierCache.Range(func(key, _ interface{}) bool {
		oidcVerifierCache.Delete(key)
		return true
	})
}
