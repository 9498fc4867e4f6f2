// Package acquire downloads candidate images and applies the response,
// extension, and image validity gates in that order.
//
// Every failure returned by Fetcher.Acquire carries exactly one of the sample
// markers from the services package so the pipeline can count it without
// inspecting messages. Staged files are named after the sha1 of the source URL
// and the sample position, so concurrent workers never share a file even when
// the upstream repeats a URL.
package acquire
