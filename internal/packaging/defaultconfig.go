package packaging

// DefaultConfig is the config.yaml written on first install. Table
// management is off, so the service only maintains the default bridge
// rules until the operator opts in.
const DefaultConfig = `# dockerfw configuration
log_level: info

facts:
  source: netlink

firewall:
  default_bridge: docker0
  forward_mode: legacy
  manage_nat_table: false
  manage_filter_table: false
  forward_filter_policy: drop
  accept_eth0: false
  accept_eth1: false
  # bridges:
  #   br-backend: {}
  # accept_rules:
  #   "ssh from the office":
  #     proto: tcp
  #     source: 192.0.2.0/24
  #     dport: "22"

iptables:
  dry_run: false
  lock_timeout: 5

reconcile:
  interval: 60s

metrics:
  # listen: 127.0.0.1:9469
  path: /metrics
`
