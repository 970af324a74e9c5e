package permission

// Expand 把授予的编码（可能含通配）展开为具体编码集合
//
// catalog 是系统登记的全部具体编码。通配编码本身也保留在结果中，
// 以便展示；评估只做精确匹配，因此它不会意外放行未登记的编码。
func Expand(granted []Code, catalog []Code) Set {
	m := make(map[Code]struct{}, len(granted))
	for _, g := range granted {
		m[g] = struct{}{}
		if !g.IsWildcard() {
			continue
		}
		for _, c := range catalog {
			if !c.IsWildcard() && g.Covers(c) {
				m[c] = struct{}{}
			}
		}
	}
	return Set{m: m}
}
