// Package pacer provides an embeddable adaptive, resource-aware batch
// scheduler for a family assistant device.
//
// Producers submit time- and priority-sensitive work items (reminders,
// processing requests). Pacer groups ready items into batches, admits a
// batch only when the sampled resources leave room for it, and degrades or
// defers low-priority work while the device is under pressure. Critical
// items bypass batching and are never dropped.
//
// # Basic Usage
//
//	cfg := pacer.DefaultConfig()
//	cfg.DispatchURL = "http://localhost:9090"
//
//	p, err := pacer.NewReminderScheduler(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := p.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	id, err := p.Submit(ctx, pacer.WorkItem[pacer.Reminder]{
//	    OwnerID:    "mia",
//	    Priority:   pacer.PriorityMedium,
//	    Channel:    "voice",
//	    TargetTime: time.Now().Add(10 * time.Minute),
//	    Payload:    pacer.Reminder{Title: "Piano practice", Room: "living room"},
//	})
//
//	// ... run until shutdown signal ...
//
//	_ = p.Stop()
//
// # Delivery
//
// Batches are handed to a [Dispatcher] one channel sub-group at a time.
// Supply one with [WithDispatcher]; otherwise Config.DispatchURL must point
// at a service accepting POST /v1/deliveries.
//
// # Resources
//
// By default memory and CPU are sampled from the current process, and
// in-flight deliveries count against the network, voice and avatar
// resources by channel. Replace the sampler with [WithSampler].
//
// # Events and Plugins
//
// Implement [EventHandler] (embedding [BaseEventHandler]) and pass it with
// [WithEventHandler] to observe lifecycle transitions and scheduler events.
// Plugins registered with [WithPlugin] are initialized on Start and shut
// down on Stop:
//
//	import "github.com/bft-labs/pacer/plugins/statusapi"
//	import "github.com/bft-labs/pacer/plugins/configwatcher"
//
//	p, err := pacer.New(cfg,
//	    statusapi.WithStatusAPI[pacer.Reminder](statusapi.DefaultConfig()),
//	    configwatcher.WithConfigWatcher[pacer.Reminder](configwatcher.Config{Path: path}),
//	)
//
// # Lifecycle States
//
// A Pacer is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. Use [Pacer.Status] to query it.
package pacer
