package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/polyglotgw/internal/adapter"
	"github.com/nextlevelbuilder/polyglotgw/internal/auth"
	"github.com/nextlevelbuilder/polyglotgw/internal/dispatch"
	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
	"github.com/nextlevelbuilder/polyglotgw/internal/sandbox"
	"github.com/nextlevelbuilder/polyglotgw/internal/sync"
)

// ServerID identifies this gateway instance in HandshakeAck.
const ServerID = "polyglotgw"

// Deps bundles the collaborators a Session's handlers call into. One Deps
// is shared by every connection; per-connection mutable state (current
// user, selected tool) lives on the Session itself.
type Deps struct {
	Users     *auth.UserStore
	Sessions  *auth.SessionManager
	ToolMgr   *dispatch.Manager
	Sandbox   *sandbox.Config
	Version   string
}

// RegisterHandlers wires the full client→server dispatch table described in
// spec.md §4.2.1 onto sess, enforcing the state machine: Handshake is only
// legal in AwaitingHandshake, Auth only in AwaitingAuth, Disconnect, Ping
// and VersionCheck in any state, everything else only once Active.
func RegisterHandlers(sess *Session, deps *Deps) {
	sess.On(protocol.TagHandshake, handleHandshake(deps))
	sess.On(protocol.TagAuth, handleAuth(deps))
	sess.On(protocol.TagPrompt, requireActive(handlePrompt(deps)))
	sess.On(protocol.TagSelectTool, requireActive(handleSelectTool(deps)))
	sess.On(protocol.TagListTools, requireActive(handleListTools(deps)))
	sess.On(protocol.TagUsage, requireActive(handleUsage(deps)))
	sess.On(protocol.TagCancel, requireActive(handleCancel(deps)))
	sess.On(protocol.TagDisconnect, handleDisconnect(deps))
	sess.On(protocol.TagPing, handlePing(deps))
	sess.On(protocol.TagVersionCheck, handleVersionCheck(deps))
	sess.On(protocol.TagSetEnv, requireActive(handleSetEnv(deps)))
	sess.On(protocol.TagSyncRequest, requireActive(handleSyncRequest(deps)))
	sess.On(protocol.TagFileRequest, requireActive(handleFileRequest(deps)))
	sess.On(protocol.TagFileChunk, requireActive(handleFileChunk(deps)))
	sess.On(protocol.TagResolveConflict, requireActive(handleResolveConflict(deps)))
}

func requireActive(h Handler) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		if sess.State() != StateActive {
			return sess.Send(protocol.TagError, protocol.Error{
				Code:    protocol.ErrProtocolMismatch,
				Message: fmt.Sprintf("message not valid in state %s", sess.State()),
			})
		}
		return h(ctx, sess, payload)
	}
}

func handleHandshake(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		if sess.State() != StateAwaitingHandshake {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrProtocolMismatch, Message: "handshake already completed"})
		}
		hs, ok := payload.(*protocol.Handshake)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: "malformed handshake"})
		}
		if hs.Version != protocol.ProtocolVersion {
			_ = sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrProtocolMismatch, Message: "unsupported protocol version"})
			sess.Close()
			return nil
		}
		sess.SetState(StateAwaitingAuth)
		return sess.Send(protocol.TagHandshakeAck, protocol.HandshakeAck{Version: protocol.ProtocolVersion, ServerID: ServerID})
	}
}

func handleAuth(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		if sess.State() != StateAwaitingAuth {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrProtocolMismatch, Message: "handshake required first"})
		}
		a, ok := payload.(*protocol.Auth)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: "malformed auth"})
		}

		user, err := deps.Users.GetUserByFingerprint(a.CertFingerprint)
		if err != nil {
			errMsg := "unrecognized certificate"
			_ = sess.Send(protocol.TagAuthResult, protocol.AuthResult{Success: false, Error: &errMsg})
			return fmt.Errorf("transport: auth failed: %w", err)
		}

		token, s, err := deps.Sessions.CreateSession(user.ID)
		if err != nil {
			return fmt.Errorf("transport: create session: %w", err)
		}
		_ = deps.Users.UpdateLastLogin(user.ID)

		sess.UserID = user.ID
		sess.SessionID = s.ID
		sess.SetState(StateActive)

		return sess.Send(protocol.TagAuthResult, protocol.AuthResult{
			Success:   true,
			SessionID: &token,
			User:      &user.Username,
		})
	}
}

func handlePrompt(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		p, ok := payload.(*protocol.Prompt)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: "malformed prompt"})
		}

		req := adapter.Request{Message: p.Message, ExtraEnv: sess.BYOKEnv()}
		if p.WorkingDir != nil {
			req.WorkingDir = *p.WorkingDir
		}

		emit := func(out adapter.Output) {
			switch out.Kind {
			case adapter.KindStdout, adapter.KindStderr:
				ot := protocol.OutputStdout
				if out.Kind == adapter.KindStderr {
					ot = protocol.OutputStderr
				}
				_ = sess.Send(protocol.TagToolOutput, protocol.ToolOutput{OutputType: ot, Content: out.Line})
			case adapter.KindStatus:
				_ = sess.Send(protocol.TagToolOutput, protocol.ToolOutput{OutputType: protocol.OutputStatus, Content: out.Line})
			case adapter.KindDone:
				_ = sess.Send(protocol.TagToolResponse, protocol.ToolResponse{Done: true, Tokens: out.Tokens})
			case adapter.KindError:
				_ = sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrToolError, Message: out.ErrText})
			}
		}

		tool, err := deps.ToolMgr.Execute(ctx, p.Tool, req, emit)
		if err != nil {
			return handleDispatchError(sess, deps, tool, err)
		}
		return nil
	}
}

func handleDispatchError(sess *Session, deps *Deps, tool protocol.Tool, err error) error {
	switch {
	case err == dispatch.ErrRateLimited:
		next, ok := deps.ToolMgr.GetNextTool(context.Background(), tool)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrRateLimited, Message: "all tools rate limited"})
		}
		notice := protocol.ToolSwitchNotice{From: tool, To: next, Reason: protocol.SwitchRateLimit, Countdown: uint32(deps.ToolMgr.SwitchDelay())}
		if err := sess.Send(protocol.TagToolSwitchNotice, notice); err != nil {
			return err
		}
		time.Sleep(time.Duration(deps.ToolMgr.SwitchDelay()) * time.Second)
		_ = deps.ToolMgr.SetCurrentTool(next)
		return sess.Send(protocol.TagToolSwitched, protocol.ToolSwitched{From: tool, To: next, Reason: protocol.SwitchRateLimit})
	default:
		return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrToolError, Message: err.Error()})
	}
}

func handleSelectTool(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		st, ok := payload.(*protocol.SelectTool)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: "malformed select_tool"})
		}
		prev := deps.ToolMgr.CurrentTool()
		if err := deps.ToolMgr.SetCurrentTool(st.Tool); err != nil {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrToolNotAvailable, Message: err.Error()})
		}
		return sess.Send(protocol.TagToolSwitched, protocol.ToolSwitched{From: prev, To: st.Tool, Reason: protocol.SwitchUserRequest})
	}
}

func handleListTools(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		current := deps.ToolMgr.CurrentTool()
		return sess.Send(protocol.TagToolList, protocol.ToolList{
			Tools:   deps.ToolMgr.ListToolInfo(ctx),
			Current: &current,
		})
	}
}

func handleUsage(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		return sess.Send(protocol.TagUsageStats, protocol.UsageStats{
			Stats:        deps.ToolMgr.GetUsage(),
			SessionStart: protocol.NowMillis(),
		})
	}
}

func handleCancel(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		deps.ToolMgr.CancelAll()
		return nil
	}
}

func handleDisconnect(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		sess.SetState(StateClosing)
		if sess.SessionID != "" {
			deps.Sessions.RemoveSession(sess.SessionID)
		}
		sess.Close()
		return nil
	}
}

func handlePing(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		p, ok := payload.(*protocol.Ping)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: "malformed ping"})
		}
		return sess.Send(protocol.TagPong, protocol.Pong{TS: p.TS, ServerTime: protocol.NowMillis()})
	}
}

func handleVersionCheck(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		return sess.Send(protocol.TagVersionInfo, protocol.VersionInfo{
			Version:  deps.Version,
			Protocol: protocol.ProtocolVersion,
		})
	}
}

// handleSetEnv implements the BYOK relay (SPEC_FULL.md §3 SUPPLEMENT):
// entries are tracked per-session, separate from the sandbox's base env
// whitelist, and merged into the next adapter launch by handlePrompt.
func handleSetEnv(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		se, ok := payload.(*protocol.SetEnv)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: "malformed set_env"})
		}
		var accepted [][2]string
		for _, kv := range se.Entries {
			if isValidEnvKey(kv[0]) {
				accepted = append(accepted, kv)
			}
		}
		sess.SetBYOKEnv(accepted)
		return sess.Send(protocol.TagEnvAck, protocol.EnvAck{Applied: uint32(len(accepted))})
	}
}

func isValidEnvKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// handleSyncRequest records the session's sync root/mode and, for
// SyncMode::Realtime, starts an fsnotify watch that pushes changed files as
// FileChunk sequences (SPEC_FULL.md §3 SUPPLEMENT).
func handleSyncRequest(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		sr, ok := payload.(*protocol.SyncRequest)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: "malformed sync_request"})
		}
		if deps.Sandbox != nil {
			if err := deps.Sandbox.ValidateRead(sr.Path); err != nil {
				return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: err.Error()})
			}
		}
		sess.SetWatcher(nil)
		sess.SyncRoot = sr.Path
		sess.SyncMode = sr.Mode
		if sr.Mode == "realtime" {
			w, err := sync.NewWatcher(sr.Path, sess)
			if err != nil {
				return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrToolError, Message: fmt.Sprintf("watch %s: %v", sr.Path, err)})
			}
			sess.SetWatcher(w)
		}
		return nil
	}
}

// handleFileRequest streams the requested file back as FileChunk messages,
// the on-demand half of sync (original_source sync/ondemand.rs).
func handleFileRequest(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		fr, ok := payload.(*protocol.FileRequest)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: "malformed file_request"})
		}
		abs := resolveSyncPath(sess, fr.Path)
		if deps.Sandbox != nil {
			if err := deps.Sandbox.ValidateRead(abs); err != nil {
				return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: err.Error()})
			}
		}
		if err := sync.SendFile(sess, abs, fr.Path); err != nil {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrToolError, Message: err.Error()})
		}
		return nil
	}
}

// handleFileChunk accepts an inbound upload (the "client-wins" half of
// conflict resolution, or a plain push-to-server), buffering per relative
// path until the Final chunk arrives.
func handleFileChunk(deps *Deps) Handler {
	receivers := make(map[string]*sync.Receiver)
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		fc, ok := payload.(*protocol.FileChunk)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: "malformed file_chunk"})
		}
		abs := resolveSyncPath(sess, fc.Path)
		if deps.Sandbox != nil {
			if err := deps.Sandbox.ValidateWrite(abs); err != nil {
				return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: err.Error()})
			}
		}
		r, ok := receivers[fc.Path]
		if !ok {
			var err error
			r, err = sync.OpenReceiver(abs)
			if err != nil {
				return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrToolError, Message: err.Error()})
			}
			receivers[fc.Path] = r
		}
		done, err := r.Write(*fc)
		if err != nil {
			delete(receivers, fc.Path)
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrToolError, Message: err.Error()})
		}
		if done {
			delete(receivers, fc.Path)
		}
		return nil
	}
}

// handleResolveConflict implements last-write-wins (UseLocal: false, re-send the
// server's copy, overwriting the client) or client-wins (UseLocal: true,
// server does nothing further and expects the client's FileChunk upload).
func handleResolveConflict(deps *Deps) Handler {
	return func(ctx context.Context, sess *Session, payload interface{}) error {
		rc, ok := payload.(*protocol.ResolveConflict)
		if !ok {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: "malformed resolve_conflict"})
		}
		if rc.UseLocal {
			return nil
		}
		abs := resolveSyncPath(sess, rc.Path)
		if deps.Sandbox != nil {
			if err := deps.Sandbox.ValidateRead(abs); err != nil {
				return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrInvalidMessage, Message: err.Error()})
			}
		}
		if err := sync.SendFile(sess, abs, rc.Path); err != nil {
			return sess.Send(protocol.TagError, protocol.Error{Code: protocol.ErrToolError, Message: err.Error()})
		}
		return nil
	}
}

func resolveSyncPath(sess *Session, relOrAbs string) string {
	if filepath.IsAbs(relOrAbs) || sess.SyncRoot == "" {
		return relOrAbs
	}
	return filepath.Join(sess.SyncRoot, strings.TrimPrefix(relOrAbs, "/"))
}

// FingerprintCert renders the SHA-256 fingerprint of a DER-encoded
// certificate for comparison against UserStore.GetUserByFingerprint.
func FingerprintCert(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}
