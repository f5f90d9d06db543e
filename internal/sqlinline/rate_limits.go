package sqlinline

const QCreateRateLimitTable = `--sql 02c97657-0059-4f8b-a77c-14ff84535258
create table if not exists {{table}} (
    user_id text not null,
    window_start bigint not null,
    operations integer not null default 0,
    ttl bigint not null,
    primary key (user_id, window_start)
);
`

// Rows past their ttl are invisible to reads until the purge loop removes them.
const QSelectRateLimitWindow = `--sql 30bf8b90-245f-4acb-8c83-6ddfbb66c82c
select operations, ttl
from {{table}}
where user_id = $1::text
  and window_start = $2::bigint
  and ttl > $3::bigint
limit 1;
`

const QIncrementRateLimitWindow = `--sql 53282ec0-861f-4fda-9004-61c936f23846
insert into {{table}} as w (user_id, window_start, operations, ttl)
values ($1::text, $2::bigint, 1, $3::bigint)
on conflict (user_id, window_start) do update set
    operations = w.operations + 1,
    ttl = excluded.ttl
returning operations;
`

const QCreateRateLimitWindow = `--sql ef2b82eb-2d5d-4029-859e-090fd1d9e4e4
insert into {{table}} (user_id, window_start, operations, ttl)
values ($1::text, $2::bigint, 1, $3::bigint)
on conflict (user_id, window_start) do nothing;
`

const QPurgeRateLimitWindows = `--sql 5da43c15-be36-4855-976d-bcca762c136e
delete from {{table}}
where ttl <= $1::bigint;
`

const QDeleteRateLimitWindow = `--sql a18f4693-a10b-4924-9019-7908b5114996
delete from {{table}}
where user_id = $1::text
  and window_start = $2::bigint;
`
