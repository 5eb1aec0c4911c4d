/*
Package testutil provides shared collaborator fakes for cragflow tests and
examples: scripted and corpus-backed retrievers, canned generators, and
error-injecting model collaborators. Production code should inject real
collaborators instead.
*/
package testutil
