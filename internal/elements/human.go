package elements

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/smithers-run/smithers/internal/store"
)

// HumanProps is the approval gate's author-facing configuration. ID pins
// identity explicitly; when empty, identity is derived by content-hashing
// Message and the serialized form of whatever Children render, so the same
// prompt always resumes the same gate.
type HumanProps struct {
	ID         string
	Message    string
	OnApprove  func(response string)
	OnReject   func(response string)
	OnCancel   func()
	Children   func(ctx Ctx) []reconciler.Element
}

// Human suspends its owning scope behind a human_interactions row: it
// creates the row (and a blocking task) the first time it activates, and on
// every later render just observes the row's status, completing the task
// and firing the matching callback exactly once when it leaves pending.
func Human(ctx Ctx, p HumanProps) (reconciler.Element, error) {
	if !ctx.Scope.Enabled {
		return reconciler.Element{}, nil
	}
	if p.ID == "" && p.Message == "" && p.Children == nil {
		return reconciler.Element{}, &store.AuthorError{Element: "Human", Reason: "requires an id, a message, or children to derive identity"}
	}

	stateKey := humanIdentityKey(ctx, p)
	taskKey := stateKey + ".taskId"
	firedKey := stateKey + ".fired"

	el := reconciler.Element{
		Type: "Human",
		Key:  stateKey,
		Component: func(c *reconciler.Cursor, props reconciler.Props) (reconciler.Element, error) {
			rowID, hasRow, err := ctx.Store.Get(stateKey)
			if err != nil {
				return reconciler.Element{}, err
			}
			if !hasRow {
				prompt := p.Message
				if prompt == "" {
					prompt = "Approve to continue"
				}
				newRowID, err := ctx.Store.CreateHumanInteraction(prompt)
				if err != nil {
					return reconciler.Element{}, err
				}
				taskID, err := ctx.Store.StartTask(ctx.ExecID, ctx.Iteration, ctx.Scope.ScopeID.String(), models.ComponentHumanInteraction, prompt)
				if err != nil {
					return reconciler.Element{}, err
				}
				if err := ctx.Store.Set(stateKey, newRowID, "human gate opened"); err != nil {
					return reconciler.Element{}, err
				}
				if err := ctx.Store.Set(taskKey, taskID, "human gate opened"); err != nil {
					return reconciler.Element{}, err
				}
				rowID = newRowID
			}

			hi, err := ctx.Store.GetHumanInteraction(rowID)
			if err != nil {
				return reconciler.Element{}, err
			}

			if hi.Status != models.HumanPending {
				fired, _, err := ctx.Store.Get(firedKey)
				if err != nil {
					return reconciler.Element{}, err
				}
				if fired != "1" {
					taskID, _, err := ctx.Store.Get(taskKey)
					if err != nil {
						return reconciler.Element{}, err
					}
					if taskID != "" {
						if err := ctx.Store.CompleteTask(taskID); err != nil {
							return reconciler.Element{}, err
						}
					}
					if err := ctx.Store.Set(firedKey, "1", "human gate resolved"); err != nil {
						return reconciler.Element{}, err
					}
					switch hi.Status {
					case models.HumanApproved:
						if p.OnApprove != nil {
							p.OnApprove(hi.Response)
						}
					case models.HumanRejected:
						if p.OnReject != nil {
							p.OnReject(hi.Response)
						}
					case models.HumanCancelled:
						if p.OnCancel != nil {
							p.OnCancel()
						}
					}
				}
				return reconciler.Element{}, nil
			}

			if p.Children == nil {
				return reconciler.Element{}, nil
			}
			return reconciler.Element{Type: "Fragment", Children: p.Children(ctx)}, nil
		},
	}
	return el, nil
}

// humanIdentityKey returns the reserved state key a Human
// gate's row id is stored under: human:<id> for an explicit ID, or
// human:content:<hash> derived from Message and the serialized form of
// whatever Children would render with no active scope (a stable probe,
// since content-hashing must not itself depend on prior gate state).
func humanIdentityKey(ctx Ctx, p HumanProps) string {
	if p.ID != "" {
		return store.HumanStateKey(p.ID)
	}
	serializedChildren := ""
	if p.Children != nil {
		probe := ctx.WithScope(ctx.Scope.Disabled())
		var b strings.Builder
		for _, el := range p.Children(probe) {
			writeElementShape(&b, el)
		}
		serializedChildren = b.String()
	}
	return store.HumanContentHashID(p.Message, serializedChildren)
}

// writeElementShape writes a deterministic, order-independent-attrs
// description of an element tree's shape for content-hashing — just
// Type/Key/Props, not hook state, since Human's probe render never mounts.
func writeElementShape(b *strings.Builder, el reconciler.Element) {
	b.WriteString(el.Type)
	b.WriteByte(':')
	b.WriteString(el.Key)
	b.WriteByte('{')
	keys := make([]string, 0, len(el.Props))
	for k := range el.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s=%v;", k, el.Props[k])
	}
	b.WriteByte('}')
	for _, c := range el.Children {
		writeElementShape(b, c)
	}
}
