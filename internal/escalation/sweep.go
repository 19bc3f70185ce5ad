package escalation

import (
	"time"

	"github.com/bwmarrin/snowflake"
	complaintdomain "github.com/smallbiznis/tirta/internal/complaint/domain"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
)

// SuspendAfterUnpaid is the number of unpaid bills a user may carry before
// being suspended.
const SuspendAfterUnpaid = 2

// SweepEscalations returns the complaints that escalate at now, already moved
// to Escalated. Complaints that do not change are left out.
func SweepEscalations(complaints []complaintdomain.Complaint, now time.Time) []complaintdomain.Complaint {
	var changed []complaintdomain.Complaint
	for _, c := range complaints {
		if !c.ShouldEscalate(now) {
			continue
		}
		c.Status = complaintdomain.StatusEscalated
		c.UpdatedAt = now
		changed = append(changed, c)
	}
	return changed
}

// SuspendDelinquent returns the Active users with more than SuspendAfterUnpaid
// unpaid bills, already moved to Suspended.
func SuspendDelinquent(users []customerdomain.User, unpaidCounts map[snowflake.ID]int) []customerdomain.User {
	var changed []customerdomain.User
	for _, u := range users {
		if u.Status != customerdomain.UserStatusActive {
			continue
		}
		if unpaidCounts[u.ID] <= SuspendAfterUnpaid {
			continue
		}
		u.Status = customerdomain.UserStatusSuspended
		changed = append(changed, u)
	}
	return changed
}
