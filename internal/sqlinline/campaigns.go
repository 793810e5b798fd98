package sqlinline

const QUpsertCampaign = `--sql 4a21678b-03e2-4f3c-b028-81e81dbf5fa2
insert into campaigns (id, name, owner, total_donations, balance, created_at, synced_at)
values (lower($1::text), $2::text, $3::text, $4::numeric, $5::numeric, now(), now())
on conflict (id) do update set
    name = excluded.name,
    owner = excluded.owner,
    total_donations = excluded.total_donations,
    balance = excluded.balance,
    synced_at = now();
`

const QListMirroredCampaigns = `--sql e1eb7fb2-336a-494f-afb9-d400390bd09c
select id, name, owner, total_donations::text, balance::text
from campaigns
order by created_at, id;
`
