package redis

const (
	// dailyTotalTTLSeconds keeps 90 days of per-day totals before Redis
	// expires the whole day hash.
	dailyTotalTTLSeconds = 90 * 24 * 60 * 60

	// addDailySecondsScript atomically increments a user's total inside the
	// day hash and starts the retention TTL when the hash is created.
	addDailySecondsScript = `
local day_key = KEYS[1]      -- voicetime:totals:{dayKey}

local user_id = ARGV[1]
local delta = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

if delta <= 0 then
  return 0
end

local created = redis.call('EXISTS', day_key) == 0

local total = redis.call('HINCRBY', day_key, user_id, delta)

if created and ttl > 0 then
  redis.call('EXPIRE', day_key, ttl)
end

return total
`
)
