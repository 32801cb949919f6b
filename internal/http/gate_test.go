package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livrasand/gitdeposit/internal/store"
	"github.com/livrasand/gitdeposit/pkg/protocol"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		service       protocol.Service
		private       bool
		authenticated bool
		granted       bool
		want          Decision
	}{
		{protocol.UploadPack, false, false, false, Allow},
		{protocol.UploadPack, false, true, false, Allow},
		{protocol.UploadPack, true, false, false, Challenge},
		{protocol.UploadPack, true, true, false, Forbid},
		{protocol.UploadPack, true, true, true, Allow},
		{protocol.ReceivePack, false, false, false, Challenge},
		{protocol.ReceivePack, false, true, false, Forbid},
		{protocol.ReceivePack, false, true, true, Allow},
		{protocol.ReceivePack, true, false, false, Challenge},
		{protocol.ReceivePack, true, true, false, Forbid},
		{protocol.ReceivePack, true, true, true, Allow},
	}
	for _, tt := range tests {
		got := Decide(tt.service, tt.private, tt.authenticated, tt.granted)
		require.Equal(t, tt.want, got, "%s private=%v auth=%v grant=%v", tt.service, tt.private, tt.authenticated, tt.granted)
	}
}

func infoRefs(d *testDeposit, path, service, user, password string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path+"/info/refs?service="+service, nil)
	if user != "" {
		req.SetBasicAuth(user, password)
	}
	return d.do(req)
}

func TestGateOnInfoRefs(t *testing.T) {
	requireGit(t)
	d := newTestDeposit(t)
	d.createRepository(t, "alice", "public", false)
	d.createRepository(t, "alice", "secret", true)

	tests := []struct {
		name     string
		path     string
		service  string
		user     string
		password string
		code     int
	}{
		{"public clone anonymous", "/alice/public.git", "git-upload-pack", "", "", 200},
		{"public push anonymous", "/alice/public.git", "git-receive-pack", "", "", 401},
		{"public push wrong password", "/alice/public.git", "git-receive-pack", "alice", "nope", 401},
		{"public push unknown user", "/alice/public.git", "git-receive-pack", "mallory", "x", 401},
		{"public push without grant", "/alice/public.git", "git-receive-pack", "bob", "hunter2", 403},
		{"public push owner", "/alice/public.git", "git-receive-pack", "alice", "secret", 200},
		{"private clone anonymous", "/alice/secret.git", "git-upload-pack", "", "", 401},
		{"private clone without grant", "/alice/secret.git", "git-upload-pack", "bob", "hunter2", 403},
		{"private clone owner", "/alice/secret.git", "git-upload-pack", "alice", "secret", 200},
		{"unknown repository", "/alice/missing.git", "git-upload-pack", "", "", 404},
		{"unknown service", "/alice/public.git", "git-frobnicate", "", "", 403},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := infoRefs(d, tt.path, tt.service, tt.user, tt.password)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.code == 401 {
				require.Equal(t, "Basic", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestGateFollowsGrants(t *testing.T) {
	requireGit(t)
	d := newTestDeposit(t)
	d.createRepository(t, "alice", "secret", true)
	ctx := context.Background()

	require.Equal(t, 403, infoRefs(d, "/alice/secret.git", "git-upload-pack", "bob", "hunter2").Code)

	require.NoError(t, d.server.Deposit.Grant(ctx, "bob", "alice", "secret"))
	require.Equal(t, 200, infoRefs(d, "/alice/secret.git", "git-upload-pack", "bob", "hunter2").Code)
	require.Equal(t, 200, infoRefs(d, "/alice/secret.git", "git-receive-pack", "bob", "hunter2").Code)

	require.NoError(t, d.server.Deposit.Revoke(ctx, "bob", "alice", "secret"))
	require.Equal(t, 403, infoRefs(d, "/alice/secret.git", "git-receive-pack", "bob", "hunter2").Code)
}

func TestInfoRefsAdvertisement(t *testing.T) {
	requireGit(t)
	d := newTestDeposit(t)
	d.seed(t, d.createRepository(t, "alice", "project", false))

	w := infoRefs(d, "/alice/project.git", "git-upload-pack", "", "")
	require.Equal(t, 200, w.Code)
	require.Equal(t, "application/x-git-upload-pack-advertisement", w.Header().Get("Content-Type"))
	require.Equal(t, "no-cache", w.Header().Get("Pragma"))
	require.Equal(t, "Fri, 01 Jan 1980 00:00:00 GMT", w.Header().Get("Expires"))
	require.True(t, strings.HasPrefix(w.Body.String(), "001e# service=git-upload-pack\n0000"))
	require.Contains(t, w.Body.String(), "refs/heads/main")
	require.Contains(t, w.Body.String(), "refs/heads/dev")
}

func TestInfoRefsMissingDirectory(t *testing.T) {
	requireGit(t)
	d := newTestDeposit(t)
	handle := d.createRepository(t, "alice", "project", false)

	// El registro existe pero el directorio desapareció
	require.NoError(t, os.RemoveAll(handle.Location))

	w := infoRefs(d, "/alice/project.git", "git-upload-pack", "", "")
	require.Equal(t, 404, w.Code)
	require.Equal(t, "no-cache", w.Header().Get("Pragma"))
}

func TestPrivateRecordDeniedWithoutGateSpawn(t *testing.T) {
	d := newTestDeposit(t)
	repo := &store.Repository{Owner: "alice", Name: "ghost", Private: true}
	require.NoError(t, d.server.Store.CreateRepository(context.Background(), repo))

	// Sin directorio en disco: el gate rechaza antes de invocar git
	w := infoRefs(d, "/alice/ghost.git", "git-upload-pack", "", "")
	require.Equal(t, 401, w.Code)
}
