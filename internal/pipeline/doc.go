// Package pipeline executes saved queries and retrieves papers.
//
// Executing a query runs esearch against the query's database and records a
// stub paper for every returned identifier. Retrieving a paper runs efetch
// for one stub and persists the mapped record: grants with their agencies and
// countries, authors with their affiliations, MeSH headings, the journal and
// the paper's own metadata. Each write phase runs in a single transaction;
// remote calls happen before it starts.
//
// Completed actions publish query.executed and paper.retrieved events.
package pipeline
