// Package fetch implements sequential bulk fetching of an
// offset-paginated SODA resource.
//
// The fetcher queries the total row count once, then requests fixed-size
// pages in ascending offset order until the count is reached, a page
// comes back empty, or a page request fails. The error policy is
// deliberately asymmetric: a count failure aborts the fetch (the loop
// cannot be bounded without it), while a page failure terminates the
// loop and keeps the rows accumulated so far as a partial result.
//
// Example usage:
//
//	client, _ := soda.New(soda.DefaultConfig(soda.DefaultResourceURL, "myapp/1.0"))
//	fetcher := fetch.New(client, fetch.DefaultConfig())
//	result, err := fetcher.FetchAll(ctx)
//
// The fetcher:
//   - Issues the count query to bound the loop
//   - Requests pages of PageSize rows, one at a time, each under PageTimeout
//   - Appends rows in fetch order (offset-ascending)
//   - Stops on a failed or empty page, flagging the result as partial
package fetch
