package realtime

// StreamAlerts carries campus alert notifications to subscribed devices.
const StreamAlerts = "alerts"
