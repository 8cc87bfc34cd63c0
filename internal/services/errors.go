// Package services defines the collaborator-facing gateway layer of the bot.
// This file centralizes the failure taxonomy shared by all collaborators so
// that the update router can classify failures with errors.Is and map them
// to fixed user-facing messages.
//
// Every value below is recoverable at the router boundary: handlers convert
// them into static replies and none is allowed to propagate to the transport
// layer or crash the process.
package services

import "errors"

var (
	// ErrGeneration indicates the generation API call failed or returned a
	// response with no extractable text.
	ErrGeneration = errors.New("generation failed")

	// ErrSearch indicates the search API call failed or returned an
	// unusable response. Searches are attempt-once; callers never retry.
	ErrSearch = errors.New("search failed")

	// ErrExtraction indicates a downloaded attachment could not be decoded
	// (image) or opened/parsed (PDF). A parseable PDF whose pages yield no
	// text is not an ErrExtraction; it produces empty text.
	ErrExtraction = errors.New("extraction failed")

	// ErrPersistence indicates a store write failed. Fatal to the current
	// request's record, never to the process; the user-visible reply may
	// still claim success, so implementations log these.
	ErrPersistence = errors.New("persistence failed")

	// ErrDownload indicates an attachment could not be fetched from the
	// chat platform.
	ErrDownload = errors.New("download failed")
)
