// Package upload covers the life of an uploaded document: storing it in
// object storage, then following its ingestion through the backend's status
// endpoint until it settles.
//
// A Poller checks the status of one target at a fixed interval for a
// bounded number of attempts. Each tick is classified:
//
//   - non-2xx response: stop, report the backend detail (StatusError)
//   - 2xx without a string status and file_name: stop (ErrUnexpectedResponse)
//   - any status other than "processing": stop, record it
//   - still processing, or a network error: continue
//
// When the attempt bound is reached the last observed status is kept as is,
// even if it is still "processing". A Tracker runs at most one poll per
// target.
package upload
