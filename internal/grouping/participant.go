package grouping

import "strings"

// Resolver 将投票人标识（email）解析为参与者
type Resolver func(identifier string) Participant

const guestRole = "guest"

// NewResolver 基于用户目录构建解析函数
//
// 解析顺序：
//  1. 目录命中 → 使用目录中的姓名与角色
//  2. 访客域名（或 guest 前缀）地址 → 合成 "Guest XXXXXX"
//  3. 其余 → 取 email 的 local part 作为显示名
func NewResolver(directory map[string]Participant, guestDomain string) Resolver {
	guestDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(guestDomain), "@"))

	return func(identifier string) Participant {
		key := strings.ToLower(strings.TrimSpace(identifier))
		if p, ok := directory[key]; ok {
			if p.Email == "" {
				p.Email = identifier
			}
			if p.Name == "" {
				p.Name = localPart(identifier)
			}
			return p
		}

		local := localPart(identifier)
		if isGuestAddress(key, guestDomain) {
			return Participant{Name: guestName(local), Email: identifier, Role: guestRole}
		}
		return Participant{Name: local, Email: identifier}
	}
}

func localPart(identifier string) string {
	if i := strings.Index(identifier, "@"); i >= 0 {
		return identifier[:i]
	}
	return identifier
}

func isGuestAddress(addr, guestDomain string) bool {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	if guestDomain != "" && addr[at+1:] == guestDomain {
		return true
	}
	return strings.HasPrefix(addr[:at], "guest-") || strings.HasPrefix(addr[:at], "guest_")
}

// guestName guest-3fa2b1c9 → Guest 3FA2B1
func guestName(local string) string {
	suffix := strings.ToLower(local)
	suffix = strings.TrimPrefix(suffix, "guest")
	suffix = strings.TrimLeft(suffix, "-_.")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	if suffix == "" {
		return "Guest"
	}
	return "Guest " + strings.ToUpper(suffix)
}
