// Package bot drives the synthetic chat workload.
//
// A Driver logs in once and then loops forever: discover the channel list,
// create the default channel when none exists, publish a burst of messages
// to one channel picked at random, cool down, repeat. Any failure inside the
// loop abandons the iteration, waits the backoff interval and restarts from
// discovery. Only a failed login stops the driver.
//
// # States
//
//	Bootstrapping -> LoggingIn -> Discovering -> [Ensuring] -> Publishing -> Cooldown -> Discovering
//	                                   ^                                                   |
//	                                   +-------------- Backoff <-- (any loop error) <------+
//
// Every Driver owns its own identity and holds its Caller (normally an
// *rpc.Session) for its whole lifetime; drivers share nothing, so many of
// them can run in one process.
package bot
