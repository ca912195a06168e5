// Package hook implements the pre-trade gate and post-trade observers that sit
// between a strategy proposal and its execution.
package hook

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/enorith/hookbot/pkg/model"
)

type Action int

const (
	ActionApprove Action = iota
	ActionModify
	ActionReject
)

func (a Action) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionModify:
		return "modify"
	case ActionReject:
		return "reject"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Decision is what a pre-trade hook returns. Proposal is only read for Modify.
type Decision struct {
	Action   Action
	Proposal model.Proposal
	Reason   string
}

func Approve() Decision {
	return Decision{Action: ActionApprove}
}

func Modify(proposal model.Proposal) Decision {
	return Decision{Action: ActionModify, Proposal: proposal}
}

func Reject(reason string) Decision {
	return Decision{Action: ActionReject, Reason: reason}
}

// PreTrade hooks may approve, replace or reject a proposal. The proposal,
// context and metadata are copies; the returned Decision is the only way to
// influence the trade.
type PreTrade interface {
	PreTrade(proposal model.Proposal, ctx model.StrategyContext, meta model.Metadata) (Decision, error)
}

// PostTrade hooks observe every executed or rejected proposal. Errors are reported, never fatal.
type PostTrade interface {
	PostTrade(outcome model.Outcome) error
}

type PreTradeFunc func(proposal model.Proposal, ctx model.StrategyContext, meta model.Metadata) (Decision, error)

func (f PreTradeFunc) PreTrade(proposal model.Proposal, ctx model.StrategyContext, meta model.Metadata) (Decision, error) {
	return f(proposal, ctx, meta)
}

type PostTradeFunc func(outcome model.Outcome) error

func (f PostTradeFunc) PostTrade(outcome model.Outcome) error {
	return f(outcome)
}

type Stage string

const (
	StagePreTrade  Stage = "pre-trade"
	StagePostTrade Stage = "post-trade"
)

var ErrNotAHook = errors.New("value implements neither PreTrade nor PostTrade")

// Failure is a hook that returned an error, panicked or produced an invalid decision.
type Failure struct {
	Hook  string
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s hook %s failed: %v", f.Stage, f.Hook, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Name returns the hook identifier used in failures and rejections.
func Name(h interface{}) string {
	if named, ok := h.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", h)
}

// Verdict is the accumulator of the pre-trade fold.
type Verdict struct {
	Decision Decision
	// Hook names the hook that rejected the proposal.
	Hook    string
	Failure *Failure
}

func (v Verdict) Rejected() bool {
	return v.Decision.Action == ActionReject
}

// Rejection converts a rejected verdict into the marker handed to post-trade hooks.
func (v Verdict) Rejection() *model.Rejection {
	if !v.Rejected() {
		return nil
	}
	rejection := &model.Rejection{Reason: v.Decision.Reason, Hook: v.Hook}
	if v.Failure != nil {
		rejection.Err = v.Failure
	}
	return rejection
}

// Pipeline is an ordered collection of hooks owned by a single engine.
type Pipeline struct {
	pre  []namedPre
	post []namedPost
}

type namedPre struct {
	name string
	hook PreTrade
}

type namedPost struct {
	name string
	hook PostTrade
}

func NewPipeline(hooks ...interface{}) (*Pipeline, error) {
	p := new(Pipeline)
	for _, h := range hooks {
		if err := p.Register(h); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Register appends h to the pre-trade chain, the post-trade list, or both,
// depending on which capabilities it implements.
func (p *Pipeline) Register(h interface{}) error {
	pre, isPre := h.(PreTrade)
	post, isPost := h.(PostTrade)
	if !isPre && !isPost {
		return fmt.Errorf("%w: %T", ErrNotAHook, h)
	}

	name := Name(h)
	if isPre {
		p.pre = append(p.pre, namedPre{name: name, hook: pre})
	}
	if isPost {
		p.post = append(p.post, namedPost{name: name, hook: post})
	}
	return nil
}

func (p *Pipeline) Len() (pre, post int) {
	return len(p.pre), len(p.post)
}

// RunPreTrade folds the pre-trade hooks left to right. A Modify replaces the
// proposal seen by later hooks, the first Reject (or failure) is final and no
// further hook is invoked. The returned decision carries the final proposal.
func (p *Pipeline) RunPreTrade(proposal model.Proposal, ctx model.StrategyContext, meta model.Metadata) Verdict {
	initial := Verdict{Decision: Decision{Action: ActionApprove, Proposal: proposal}}
	return foldLeft(p.pre, initial, func(acc Verdict, h namedPre) Verdict {
		if acc.Rejected() {
			return acc
		}
		return step(acc, h, ctx, meta)
	})
}

func foldLeft(hooks []namedPre, acc Verdict, fn func(Verdict, namedPre) Verdict) Verdict {
	for _, h := range hooks {
		acc = fn(acc, h)
	}
	return acc
}

func step(acc Verdict, h namedPre, ctx model.StrategyContext, meta model.Metadata) Verdict {
	decision, err := callPreTrade(h.hook, acc.Decision.Proposal, ctx, meta)
	if err != nil {
		return fail(acc, h.name, err)
	}

	switch decision.Action {
	case ActionApprove:
		return acc
	case ActionModify:
		if err := decision.Proposal.Validate(); err != nil {
			return fail(acc, h.name, fmt.Errorf("modified proposal: %w", err))
		}
		return Verdict{Decision: Decision{Action: ActionModify, Proposal: decision.Proposal}}
	case ActionReject:
		return Verdict{
			Decision: Decision{Action: ActionReject, Proposal: acc.Decision.Proposal, Reason: decision.Reason},
			Hook:     h.name,
		}
	}
	return fail(acc, h.name, fmt.Errorf("unknown action %s", decision.Action))
}

func fail(acc Verdict, name string, err error) Verdict {
	failure := &Failure{Hook: name, Stage: StagePreTrade, Err: err}
	log.WithError(err).WithField("hook", name).Warn("pre-trade hook failed, rejecting proposal")
	return Verdict{
		Decision: Decision{Action: ActionReject, Proposal: acc.Decision.Proposal, Reason: "hook failure: " + err.Error()},
		Hook:     name,
		Failure:  failure,
	}
}

// RunPostTrade notifies every post-trade hook in registration order. A failing
// hook does not prevent the remaining ones from running.
func (p *Pipeline) RunPostTrade(outcome model.Outcome) []*Failure {
	var failures []*Failure
	for _, h := range p.post {
		if err := callPostTrade(h.hook, detach(outcome)); err != nil {
			log.WithError(err).WithField("hook", h.name).Error("post-trade hook failed")
			failures = append(failures, &Failure{Hook: h.name, Stage: StagePostTrade, Err: err})
		}
	}
	return failures
}

// detach gives each observer its own copies of the pointed-to records.
func detach(outcome model.Outcome) model.Outcome {
	if outcome.Trade != nil {
		trade := *outcome.Trade
		outcome.Trade = &trade
	}
	if outcome.Rejection != nil {
		rejection := *outcome.Rejection
		outcome.Rejection = &rejection
	}
	outcome.Failures = nil
	return outcome
}

func callPreTrade(h PreTrade, proposal model.Proposal, ctx model.StrategyContext, meta model.Metadata) (decision Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.PreTrade(proposal, ctx, meta)
}

func callPostTrade(h PostTrade, outcome model.Outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.PostTrade(outcome)
}
