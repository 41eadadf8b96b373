package ps

import "errors"

// Parent returns the parent process, pre-emptively checking that this
// handle's PID has not been reused. Returns nil (no error) when the parent
// is unknown or when the recorded ppid was itself recycled: a "parent"
// younger than its child is PID-reuse noise, not lineage.
func (p *Process) Parent() (*Process, error) {
	if err := p.assertRunning(); err != nil {
		return nil, err
	}
	ppid, err := p.Ppid()
	if err != nil {
		if errors.Is(err, ErrNoSuchProcess) {
			return nil, nil
		}
		return nil, err
	}
	parent, err := p.s.Process(ppid)
	if err != nil {
		if errors.Is(err, ErrNoSuchProcess) {
			return nil, nil
		}
		return nil, err
	}
	pct, err := parent.CreateTime()
	if err != nil {
		if errors.Is(err, ErrNoSuchProcess) {
			return nil, nil
		}
		return nil, err
	}
	sct, err := p.CreateTime()
	if err != nil {
		return nil, err
	}
	if pct <= sct {
		return parent, nil
	}
	return nil, nil
}

// Children returns this process's children, pre-emptively checking that
// the PID has not been reused. With recursive true it returns all
// descendants.
//
// A candidate child older than this process is excluded: its PID predates
// the parent, so it must belong to an earlier, unrelated process. In the
// recursive walk the creation time of every descendant is compared against
// this process — the original root — not its immediate parent; if an
// intermediate ancestor disappears, its whole subtree is unreachable from
// the root and is silently dropped:
//
//	A ─┬─ B ── X ── Y
//	   ├─ C
//	   └─ D
//
// Children(false) → B, C, D; Children(true) → B, C, D, X, Y. If X dies,
// Y is no longer listed.
func (p *Process) Children(recursive bool) ([]*Process, error) {
	if err := p.assertRunning(); err != nil {
		return nil, err
	}
	selfCT, err := p.CreateTime()
	if err != nil {
		return nil, err
	}

	// Bulk pid→ppid snapshot when the provider has one: same result,
	// fewer per-process queries. Errors fall back to the slow path.
	var ppidMap map[int32]int32
	if pm, ok := p.s.prov.(ParentMapper); ok {
		ppidMap, _ = pm.PpidMap()
	}

	var ret []*Process
	if !recursive {
		if ppidMap == nil {
			for q, err := range p.s.Iter() {
				if err != nil {
					return nil, err
				}
				ppid, err := q.Ppid()
				if err != nil {
					if errors.Is(err, ErrNoSuchProcess) {
						continue
					}
					return nil, err
				}
				if ppid != p.pid {
					continue
				}
				ct, err := q.CreateTime()
				if err != nil {
					if errors.Is(err, ErrNoSuchProcess) {
						continue
					}
					return nil, err
				}
				if selfCT <= ct {
					ret = append(ret, q)
				}
			}
		} else {
			for pid, ppid := range ppidMap {
				if ppid != p.pid {
					continue
				}
				child, err := p.s.Process(pid)
				if err != nil {
					if errors.Is(err, ErrNoSuchProcess) {
						continue
					}
					return nil, err
				}
				ct, err := child.CreateTime()
				if err != nil {
					if errors.Is(err, ErrNoSuchProcess) {
						continue
					}
					return nil, err
				}
				if selfCT <= ct {
					ret = append(ret, child)
				}
			}
		}
		return ret, nil
	}

	// Recursive: one pass to build ppid → children, then a breadth-first
	// expansion from self. Each PID is expanded at most once, so
	// inconsistent parent data cannot loop.
	table := make(map[int32][]*Process)
	if ppidMap == nil {
		for q, err := range p.s.Iter() {
			if err != nil {
				return nil, err
			}
			ppid, err := q.Ppid()
			if err != nil {
				if errors.Is(err, ErrNoSuchProcess) {
					continue
				}
				return nil, err
			}
			table[ppid] = append(table[ppid], q)
		}
	} else {
		for pid, ppid := range ppidMap {
			child, err := p.s.Process(pid)
			if err != nil {
				if errors.Is(err, ErrNoSuchProcess) {
					continue
				}
				return nil, err
			}
			table[ppid] = append(table[ppid], child)
		}
	}

	checkpids := []int32{p.pid}
	seen := map[int32]struct{}{p.pid: {}}
	for i := 0; i < len(checkpids); i++ {
		for _, child := range table[checkpids[i]] {
			ct, err := child.CreateTime()
			if err != nil {
				if errors.Is(err, ErrNoSuchProcess) {
					continue
				}
				return nil, err
			}
			// Compare against the root, not the immediate parent.
			if selfCT <= ct {
				ret = append(ret, child)
				if _, ok := seen[child.pid]; !ok {
					seen[child.pid] = struct{}{}
					checkpids = append(checkpids, child.pid)
				}
			}
		}
	}
	return ret, nil
}
