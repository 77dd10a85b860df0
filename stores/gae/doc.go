// Package gae provides a Google Cloud Datastore secretshare.UserStore. It is
// designed for deployment on Google Cloud Platform and supports multi-tenancy
// through Datastore namespaces.
//
// # Datastore Kinds
//
//   - User: one entity per user, keyed by a generated uuid
//   - ProviderLink: maps "strategy:key" onto a user id; local usernames are
//     stored lowercased under the "local" strategy
//
// A user and its link are written in the same transaction, which is what
// makes find-or-create atomic across instances.
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	userStore := gae.NewUserStore(client, "") // default namespace
package gae
