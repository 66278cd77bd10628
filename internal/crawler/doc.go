// Package crawler defines the job-posting domain model, the collaborator
// interfaces used by the harvesting pipeline, and the pull-based pager that
// walks a paginated listing feed.
package crawler
