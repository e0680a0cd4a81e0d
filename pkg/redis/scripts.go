package redis

// incrWithExpiry bumps a counter and starts its window on the first hit.
const incrWithExpiry = `
local n = redis.call("INCR", KEYS[1])
if n == 1 and tonumber(ARGV[1]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

// deleteIfEquals removes KEYS[1] only while it still holds ARGV[1].
const deleteIfEquals = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`
