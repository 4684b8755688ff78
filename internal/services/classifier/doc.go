// Package classifier talks to the upstream document classification service.
//
// The client posts raw PDF bytes to <apiBase>/classify/<correlationId>,
// normalizes the JSON it gets back into a record.Result and tags every
// failure with a services marker so callers can fold it into the record.
package classifier
