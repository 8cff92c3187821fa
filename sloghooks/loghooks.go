// Package sloghooks reports fetch engine events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/algfetch"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	RaceEvery     uint64
	FallbackEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	raceCtr     atomic.Uint64
	fallbackCtr atomic.Uint64
}

var _ algfetch.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ConstructionRace(op algfetch.Operation, name string) {
	if h.l == nil || !sample(h.opts.RaceEvery, &h.raceCtr) {
		return
	}
	h.l.Debug("algfetch.construction_race",
		"op", op.String(),
		"name", name)
}

func (h *Hooks) LegacyFallback(op algfetch.Operation, name string) {
	if h.l == nil || !sample(h.opts.FallbackEvery, &h.fallbackCtr) {
		return
	}
	h.l.Info("algfetch.legacy_fallback",
		"op", op.String(),
		"name", name)
}

func (h *Hooks) ResolutionSelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("algfetch.resolution_self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) StoreSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("algfetch.store_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) GenSnapshotError(op algfetch.Operation, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("algfetch.gen_snapshot_error",
		"op", op.String(),
		"err", err)
}

func (h *Hooks) GenBumpError(op algfetch.Operation, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("algfetch.gen_bump_error",
		"op", op.String(),
		"err", err)
}

func (h *Hooks) BadDefinition(provider, name string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("algfetch.bad_definition",
		"provider", provider,
		"name", name,
		"err", err)
}
