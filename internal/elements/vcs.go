package elements

import (
	"context"

	"github.com/smithers-run/smithers/internal/reconciler"
)

// VCS is the external version-control collaborator: the engine
// only ever asks it to snapshot or commit and records the resulting id in
// `vcs_events`; it never interprets the underlying VCS's semantics.
type VCS interface {
	Snapshot(ctx context.Context) (id string, err error)
	Commit(ctx context.Context, message string) (id string, err error)
}

// SnapshotProps configures a standalone Snapshot leaf.
type SnapshotProps struct {
	ID         string
	OnFinished func(id string)
	OnError    func(error)
}

// Snapshot invokes vcs.Snapshot on activation and logs a vcs_events row,
// exactly once per durable id. Like Command and Agent, the invocation is
// dispatched from OnMount so a render never blocks on the collaborator.
func Snapshot(ctx Ctx, vcs VCS, p SnapshotProps) reconciler.Element {
	return vcsLeaf(ctx, "Snapshot", p.ID, p.OnError, func() (string, error) {
		return vcs.Snapshot(context.Background())
	}, p.OnFinished, "snapshot")
}

// CommitProps configures a standalone Commit leaf.
type CommitProps struct {
	ID         string
	Message    string
	OnFinished func(id string)
	OnError    func(error)
}

// Commit invokes vcs.Commit on activation and logs a vcs_events row,
// exactly once per durable id.
func Commit(ctx Ctx, vcs VCS, p CommitProps) reconciler.Element {
	return vcsLeaf(ctx, "Commit", p.ID, p.OnError, func() (string, error) {
		return vcs.Commit(context.Background(), p.Message)
	}, p.OnFinished, p.Message)
}

// VCSError reports a Snapshot or Commit invocation that did not complete
// successfully.
type VCSError struct {
	Type string
	ID   string
}

func (e *VCSError) Error() string {
	return "smithers: " + e.Type + " " + e.ID + " did not complete successfully"
}

// vcsLeaf follows the same live-process-only OnMount plus durable-stage
// machinery as Agent: the collaborator call itself cannot be resumed across
// a restart, but a result already recorded before one never re-runs, and the
// Component closure never calls invoke() directly.
func vcsLeaf(ctx Ctx, typ, id string, onError func(error), invoke func() (string, error), onFinished func(string), message string) reconciler.Element {
	keyPrefix := "vcs." + typ + "." + id
	stageKey := keyPrefix + ".stage"
	firedKey := keyPrefix + ".fired"
	resultKey := keyPrefix + ".resultId"
	successKey := keyPrefix + ".success"
	doneKey := keyPrefix + ".done"

	return reconciler.Element{
		Type:  typ,
		Key:   id,
		Props: reconciler.Props{"id": id},
		Component: func(c *reconciler.Cursor, props reconciler.Props) (reconciler.Element, error) {
			if !ctx.Scope.Enabled {
				return reconciler.Element{}, nil
			}

			recorded, _, err := ctx.Store.Get(doneKey)
			if err != nil {
				return reconciler.Element{}, err
			}
			if recorded == "1" {
				return reconciler.Element{}, nil
			}

			stage, _, err := ctx.Store.Get(stageKey)
			if err != nil {
				return reconciler.Element{}, err
			}

			switch stage {
			case "":
				c.OnMount(func() {
					go runVCSAsync(ctx, invoke, stageKey, resultKey, successKey)
				})
				return reconciler.Element{}, nil
			case "done":
				fired, _, err := ctx.Store.Get(firedKey)
				if err != nil {
					return reconciler.Element{}, err
				}
				if fired == "1" {
					return reconciler.Element{}, nil
				}
				if err := ctx.Store.Set(firedKey, "1", typ+" result delivered"); err != nil {
					return reconciler.Element{}, err
				}

				successStr, _, _ := ctx.Store.Get(successKey)
				if successStr != "true" {
					if onError != nil {
						onError(&VCSError{Type: typ, ID: id})
					}
					return reconciler.Element{}, nil
				}

				vcsID, _, _ := ctx.Store.Get(resultKey)
				if _, err := ctx.Store.RecordVCSEvent(typ, vcsID, vcsID, message); err != nil {
					return reconciler.Element{}, err
				}
				if err := ctx.Store.Set(doneKey, "1", typ+" recorded"); err != nil {
					return reconciler.Element{}, err
				}
				if onFinished != nil {
					onFinished(vcsID)
				}
				return reconciler.Element{}, nil
			default:
				return reconciler.Element{}, nil
			}
		},
	}
}

func runVCSAsync(ctx Ctx, invoke func() (string, error), stageKey, resultKey, successKey string) {
	_ = ctx.Store.Set(stageKey, "running", "vcs invocation started")

	vcsID, err := invoke()

	_ = ctx.Store.Set(resultKey, vcsID, "vcs invocation result")
	_ = ctx.Store.Set(successKey, boolString(err == nil), "vcs invocation result")
	_ = ctx.Store.Set(stageKey, "done", "vcs invocation finished")
}
