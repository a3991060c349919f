// Package receiver accepts statsd datagrams over UDP or unixgram sockets.
//
// Each datagram may carry several '\n'-separated lines of the form
// name:value|type[|@rate][|#tag,...]. Valid lines are recorded in the store;
// malformed lines are counted and logged at debug level.
package receiver
