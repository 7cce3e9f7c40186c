// Package notification delivers reservation-ready notices to members.
//
// AMQPNotifier publishes a JSON message per notice to a RabbitMQ topic exchange, where a
// mail or push gateway picks it up. Publishing is throttled and guarded by a circuit
// breaker so that a struggling broker makes notices fail fast instead of slowing down
// the handlers that send them. LogNotifier only logs, for local runs without a broker.
package notification
