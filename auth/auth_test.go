package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blobemu/blobemu/cmn"
)

const testAccount = "devstoreaccount1"
const testKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

func keys(account string) (string, bool) {
	if account != testAccount {
		return "", false
	}
	return testKey, true
}

func signSharedKey(t *testing.T, r *http.Request, account, base64Key string) {
	t.Helper()
	sts := sharedKeyStringToSign(r, account)
	keyBytes, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	mac := hmac.New(sha256.New, keyBytes)
	mac.Write([]byte(sts))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	r.Header.Set(cmn.HdrAuthorization, "SharedKey "+account+":"+sig)
}

func newGetRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:10000"+path, nil)
	r.Header.Set(cmn.HdrMSDate, time.Now().UTC().Format(cmn.HTTPTimeFormat))
	r.Header.Set(cmn.HdrMSVersion, cmn.APIVersion)
	return r
}

func TestAuthenticateSharedKeySuccess(t *testing.T) {
	r := newGetRequest(t, "/"+testAccount+"/pics?restype=container&comp=list")
	signSharedKey(t, r, testAccount, testKey)

	ident, err := Authenticate(r, testAccount, keys, time.Now())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if ident.Account != testAccount || ident.Anonymous {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestAuthenticateSharedKeyBadSignature(t *testing.T) {
	r := newGetRequest(t, "/"+testAccount+"/pics?restype=container&comp=list")
	r.Header.Set(cmn.HdrAuthorization, "SharedKey "+testAccount+":bm90LXRoZS1yaWdodC1zaWc=")

	_, err := Authenticate(r, testAccount, keys, time.Now())
	if err == nil {
		t.Fatal("expected authentication failure for a bad signature")
	}
	if cmn.AsBlobError(err).Code != cmn.ErrAuthenticationFailed {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestAuthenticateAnonymousFallback(t *testing.T) {
	r := newGetRequest(t, "/"+testAccount+"/$web/index.html")

	ident, err := Authenticate(r, testAccount, keys, time.Now())
	if err != nil {
		t.Fatalf("expected anonymous fallback to succeed, got %v", err)
	}
	if !ident.Anonymous {
		t.Fatal("expected an anonymous identity")
	}
}

func TestAuthenticateUnknownAccountRejected(t *testing.T) {
	r := newGetRequest(t, "/unknownaccount/pics")
	_, err := Authenticate(r, "unknownaccount", keys, time.Now())
	if err == nil {
		t.Fatal("expected failure for an account with no registered key")
	}
}
