package keyword

// Peer and queue families.
const (
	PeerState              = "fd_peer_state"
	PeerMessagesReceived   = "fd_peer_messages_received_total"
	PeerMessagesSent       = "fd_peer_messages_sent_total"
	PeerApplicationSupport = "fd_peer_application_support"
	PeerPSMQueuePrefix     = "fd_peer_psm_queue_"
	PeerToSendQueuePrefix  = "fd_peer_tosend_queue_"
	QueuePrefix            = "fd_queue_"
)

// Queue shape suffixes, in exposition order.
const (
	Current = "current"
	Limit   = "limit"
	Highest = "highest"
	Total   = "total"
)

// Labels.
const (
	LabelPeer   = "peer"
	LabelAppID  = "appid"
	LabelQueue  = "queue"
	LabelReason = "reason"
	LabelPath   = "path"
	LabelStatus = "status"
)

// Exporter self-metrics.
const (
	Scrapes        = "fd_exporter_scrapes_total"
	ScrapeErrors   = "fd_exporter_scrape_errors_total"
	ScrapeDuration = "fd_exporter_scrape_duration_seconds"
	ResponseBytes  = "fd_exporter_response_bytes"
	HttpRequests   = "fd_exporter_http_requests_total"
)
