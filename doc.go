// Package mindful is the Composition Root for the mindful state layer.
//
// It connects owner-scoped stores (pkg/scoped), identity providers
// (pkg/session) and the feature entities of a personal-wellbeing app
// (pkg/wellbeing) with the slot storage adapters (pkg/adapters) using the
// Hexagonal Architecture pattern.
//
// A slot is one named value in storage. Per-user data lives under
// "<base>_<owner>"; with no signed-in owner a store is ephemeral and never
// writes. Handles sharing a backend (processes on one directory, hosts behind
// a relay) adopt each other's writes.
//
// Usage:
//
//	provider := session.NewLocal("u1")
//	ws, err := mindful.OpenWorkspace(ctx, "./data", provider,
//		mindful.WithLogger(logger),
//	)
//	defer ws.Close()
//
//	err = ws.Tasks.Update(ctx, func(tasks []wellbeing.Task) []wellbeing.Task {
//		return wellbeing.Add(tasks, wellbeing.NewTask("Drink water"))
//	})
package mindful
