// Package crawler defines the domain types shared by the search loop, its
// critic and selector coordinators, the batch runner, and the run service,
// together with the collaborator interfaces they depend on.
package crawler
