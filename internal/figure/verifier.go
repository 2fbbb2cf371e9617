/**
 * Figure verification
 *
 * Secondary classification pass over extracted crops. Geometry
 * reconciliation still lets through body-text blocks and blank regions;
 * this pass asks a cheaper classification endpoint whether each crop is
 * actually a figure before anything is persisted. Verification failure is
 * not evidence of non-figure-ness, so call failures keep the figure.
 */

package figure

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/textbridge/ocr-worker/internal/logging"
)

// VerifyResult is the classification verdict for one crop.
type VerifyResult struct {
	IsFigure   bool    `json:"is_figure"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// VerifyClient is the secondary classification capability.
type VerifyClient interface {
	VerifyFigure(ctx context.Context, pngImage []byte, claimed Type) (*VerifyResult, error)
}

// Verifier confirms or rejects extracted crops.
type Verifier struct {
	client VerifyClient
	local  *LocalChecker
	h      Heuristics
	logger *logging.Logger
}

// NewVerifier creates a verifier. A nil client skips remote verification;
// a non-nil local checker is consulted only when the remote call is
// unavailable or failing.
func NewVerifier(client VerifyClient, local *LocalChecker, h Heuristics) *Verifier {
	return &Verifier{
		client: client,
		local:  local,
		h:      h,
		logger: logging.NewLogger("FigureVerifier"),
	}
}

// Verify decides whether one crop survives. It returns the possibly
// type-corrected crop and whether to keep it.
func (v *Verifier) Verify(ctx context.Context, crop Crop) (Crop, bool) {
	if v.client == nil {
		return v.localVerdict(crop)
	}

	res, err := v.client.VerifyFigure(ctx, crop.PNG, crop.Figure.Type)
	if err != nil {
		v.logger.Warn("verification call failed, keeping figure",
			"figure", crop.Figure.ID, "error", err)
		return v.localVerdict(crop)
	}

	if !res.IsFigure || res.Confidence < v.h.VerifyMinConfidence {
		v.logger.Info("figure rejected",
			"figure", crop.Figure.ID,
			"is_figure", res.IsFigure,
			"confidence", res.Confidence,
			"reason", res.Reason)
		return crop, false
	}

	if res.Type != "" && Type(res.Type) != crop.Figure.Type {
		v.logger.Debug("figure type corrected",
			"figure", crop.Figure.ID,
			"from", crop.Figure.Type, "to", res.Type)
		crop.Figure.Type = Type(res.Type)
	}
	return crop, true
}

// localVerdict falls back to the on-host text-density heuristic, or keeps
// the figure when no local checker is configured.
func (v *Verifier) localVerdict(crop Crop) (Crop, bool) {
	if v.local == nil {
		return crop, true
	}
	keep, err := v.local.LooksLikeFigure(crop.PNG)
	if err != nil {
		v.logger.Warn("local check failed, keeping figure",
			"figure", crop.Figure.ID, "error", err)
		return crop, true
	}
	if !keep {
		v.logger.Info("figure rejected by local text-density check",
			"figure", crop.Figure.ID)
	}
	return crop, keep
}

// VerifyAll filters a page's crops down to the confirmed ones, preserving
// order. Verification calls run with bounded concurrency.
func (v *Verifier) VerifyAll(ctx context.Context, crops []Crop) []Crop {
	if len(crops) == 0 {
		return nil
	}

	type verdict struct {
		crop Crop
		keep bool
	}
	verdicts := make([]verdict, len(crops))

	limit := v.h.VerifyConcurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, crop := range crops {
		i, crop := i, crop
		g.Go(func() error {
			c, ok := v.Verify(gctx, crop)
			verdicts[i] = verdict{crop: c, keep: ok}
			return nil
		})
	}
	g.Wait()

	kept := make([]Crop, 0, len(crops))
	for _, vd := range verdicts {
		if vd.keep {
			kept = append(kept, vd.crop)
		}
	}
	return kept
}
