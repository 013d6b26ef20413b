package uploader

import (
	"context"
	"fmt"
	"log"

	"screen-capture-upload/src/payload"
)

// OutcomeKind classifies the overall result of one fan-out.
type OutcomeKind int

const (
	// OutcomeUploaded means at least one provider returned a URL.
	OutcomeUploaded OutcomeKind = iota
	// OutcomeSavedLocally means no provider was registered and the payload
	// was written to local storage instead. Success without a URL.
	OutcomeSavedLocally
	// OutcomeFailed means providers were registered but none returned a
	// URL. There is deliberately no local fallback in this case.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSavedLocally:
		return "saved-locally"
	case OutcomeFailed:
		return "failed"
	default:
		return "uploaded"
	}
}

// Outcome is the reconciled result of uploading one payload.
type Outcome struct {
	Kind      OutcomeKind
	URL       string
	SavedPath string
}

// Notifier receives the per-provider failure notices produced during a
// fan-out. Fire-and-forget; the orchestrator never waits on it.
type Notifier interface {
	Notify(message string)
}

// NotifyFunc adapts a function to the Notifier interface.
type NotifyFunc func(message string)

func (f NotifyFunc) Notify(message string) { f(message) }

// Orchestrator fans a capture payload out to every enabled provider and
// reconciles the per-provider outcomes into one result.
type Orchestrator struct {
	registry  *Registry
	preferred string
	saveDir   string
	notifier  Notifier
}

func NewOrchestrator(registry *Registry, preferred, saveDir string, notifier Notifier) *Orchestrator {
	if notifier == nil {
		notifier = NotifyFunc(func(string) {})
	}
	return &Orchestrator{
		registry:  registry,
		preferred: preferred,
		saveDir:   saveDir,
		notifier:  notifier,
	}
}

type settled struct {
	name string
	url  string // empty means this provider failed
}

// UploadAll dispatches the payload to every enabled provider concurrently
// and picks one canonical result:
//
//   - empty registry: the payload is saved locally, no network I/O happens;
//   - the preferred provider's URL wins whenever it succeeded;
//   - otherwise the URL of the provider that settled LAST wins. Under
//     concurrency that order is nondeterministic; the tie-break is kept for
//     compatibility with the historical fan-out, not because last is best.
//
// Provider failures never propagate: each one is converted to a no-URL
// result and reported individually. No timeout is imposed here; a hung
// provider is that provider's responsibility.
func (o *Orchestrator) UploadAll(ctx context.Context, p payload.Payload) Outcome {
	providers := o.registry.Snapshot()

	if len(providers) == 0 {
		path, err := p.SaveLocal(o.saveDir)
		if err != nil {
			log.Printf("uploader: local save failed: %v", err)
			o.notifier.Notify(fmt.Sprintf("Failed to save %s locally", p.Filename))
			return Outcome{Kind: OutcomeFailed}
		}
		log.Printf("uploader: no providers registered, saved %s", path)
		return Outcome{Kind: OutcomeSavedLocally, SavedPath: path}
	}

	ch := make(chan settled, len(providers))
	for _, provider := range providers {
		go func(pr Provider) {
			url, err := safeUpload(ctx, pr, p)
			if err != nil || url == "" {
				if err != nil {
					log.Printf("uploader: %s failed: %v", pr.Name(), err)
				}
				o.notifier.Notify(fmt.Sprintf("Upload to %s failed", pr.Name()))
				url = ""
			}
			ch <- settled{name: pr.Name(), url: url}
		}(provider)
	}

	// Collect in settling order into an immutable list, then decide.
	results := make([]settled, 0, len(providers))
	for range providers {
		results = append(results, <-ch)
	}

	chosen := ""
	for _, r := range results {
		if r.url != "" {
			chosen = r.url // last settled success
		}
	}
	for _, r := range results {
		if o.preferred != "" && r.name == o.preferred && r.url != "" {
			chosen = r.url
		}
	}

	if chosen == "" {
		return Outcome{Kind: OutcomeFailed}
	}
	return Outcome{Kind: OutcomeUploaded, URL: chosen}
}

// safeUpload contains a provider call: errors return normally and panics are
// converted to errors so nothing crosses the orchestrator boundary.
func safeUpload(ctx context.Context, pr Provider, p payload.Payload) (url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			url = ""
			err = fmt.Errorf("provider %s panicked: %v", pr.Name(), r)
		}
	}()
	return pr.Upload(ctx, p.Filename, p.Data)
}
